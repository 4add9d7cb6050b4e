package models

// Post is the stored row. ID is zero until the store assigns one.
type Post struct {
	ID       int64
	Username string
	// Password holds the bcrypt digest, never the plain text.
	Password string
	Title    string
	Content  string
}

// UpdateTitle and UpdateContent are the only mutations a stored post allows.
func (p *Post) UpdateTitle(title string) {
	p.Title = title
}

func (p *Post) UpdateContent(content string) {
	p.Content = content
}

type PostDetail struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Content  string `json:"content"`
}

type PostSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
}

type PostWrite struct {
	Username    string `json:"username"`
	RawPassword string `json:"rawPassword"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

type PostEdit struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// IDResponse serializes as {"id": null} when ID is nil.
type IDResponse struct {
	ID *int64 `json:"id"`
}

func NewIDResponse(id int64) IDResponse {
	if id <= 0 {
		return IDResponse{}
	}
	return IDResponse{ID: &id}
}
