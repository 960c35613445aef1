package domain

// Session holds the remote account identity. A session is logged in only
// when both fields are set.
type Session struct {
	Username string
	Token    string
}

func (s Session) LoggedIn() bool {
	return s.Username != "" && s.Token != ""
}

// AuthToken is the credential string sent on every remote request.
func (s Session) AuthToken() string {
	return s.Username + ":" + s.Token
}
