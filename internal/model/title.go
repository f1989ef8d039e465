package model

// Title is a search seed from the warehouse title dimension.
// Rows are maintained externally; the pipeline only reads them.
type Title struct {
	ID      int    `json:"titleId"`
	ByTitle string `json:"title"`
}
