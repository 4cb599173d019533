package search

// Post is one upstream search result. Only the fields the service consumes
// are mapped; everything else in the upstream payload is dropped.
type Post struct {
	ID          int64       `json:"id"`
	File        PostFile    `json:"file"`
	Preview     PostPreview `json:"preview"`
	Description string      `json:"description"`
	Score       PostScore   `json:"score"`
}

// PostFile describes the media file behind a post.
type PostFile struct {
	Ext    string `json:"ext"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// PostPreview is the thumbnail variant of a post.
type PostPreview struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PostScore is the vote tally of a post.
type PostScore struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}
