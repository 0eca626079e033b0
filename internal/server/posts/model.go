package posts

// Post is a board entry. Pubkey is set once at creation and never changes;
// Votes moves only through the payment gate; Verified flips false→true at
// most once.
type Post struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Username  string `json:"username"`
	Votes     int64  `json:"votes"`
	Signature string `json:"signature"`
	Pubkey    string `json:"pubkey"`
	Verified  bool   `json:"verified"`
}

// NodeEntry is the persisted subset of a session, enough to re-run the
// connection handshake after a restart.
type NodeEntry struct {
	Token    string `json:"token"`
	Host     string `json:"host"`
	Cert     string `json:"cert"`
	Macaroon string `json:"macaroon"`
	Pubkey   string `json:"pubkey"`
}

// Document is the whole persisted state, written as one unit on every
// mutation and loaded in full at startup.
type Document struct {
	Posts []*Post      `json:"posts"`
	Nodes []*NodeEntry `json:"nodes"`
}

func (p *Post) clone() *Post {
	c := *p
	return &c
}
