package pinboard

import (
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
)

// Post is one entry of the remote listing.
type Post struct {
	URL         string
	Title       string
	Description string
	Tags        string
	Fingerprint string
	Private     bool
	Unread      bool
	ModifiedAt  time.Time
}

// Bookmark converts the post into a confirmed local record.
func (p Post) Bookmark() *domain.Bookmark {
	return &domain.Bookmark{
		URL:         p.URL,
		Title:       p.Title,
		Description: p.Description,
		Tags:        p.Tags,
		Private:     p.Private,
		Unread:      p.Unread,
		Date:        p.ModifiedAt,
		Fingerprint: domain.Confirmed(p.Fingerprint),
	}
}

// post is the wire shape of /posts/all entries.
type post struct {
	Href        string `json:"href"`
	Description string `json:"description"`
	Extended    string `json:"extended"`
	Meta        string `json:"meta"`
	Hash        string `json:"hash"`
	Time        string `json:"time"`
	Shared      string `json:"shared"`
	ToRead      string `json:"toread"`
	Tags        string `json:"tags"`
}

func (p post) toPost(now func() time.Time) Post {
	modified, err := time.Parse(timeLayout, p.Time)
	if err != nil {
		modified = now().UTC()
	}
	return Post{
		URL:         p.Href,
		Title:       p.Description,
		Description: p.Extended,
		Tags:        p.Tags,
		Fingerprint: p.Meta,
		Private:     p.Shared != "yes",
		Unread:      p.ToRead == "yes",
		ModifiedAt:  modified,
	}
}
