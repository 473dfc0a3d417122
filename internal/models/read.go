package models

// ReadFileRequest asks for a numbered slice of a file, used to check anchor
// lines before writing directives. Either StartLine/EndLine or Around/Context
// may be given; with neither the whole file is returned.
type ReadFileRequest struct {
	Name      string `json:"name"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	// Around centres the window on this line.
	Around int `json:"around,omitempty"`
	// Context is the number of lines shown on each side of Around.
	Context int `json:"context,omitempty"`
}

// NumberedLine is one line of a ReadFileResponse. Content has its terminator stripped.
type NumberedLine struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// ReadFileResponse is the result of a read.
type ReadFileResponse struct {
	Name       string         `json:"name"`
	TotalLines int            `json:"total_lines"`
	StartLine  int            `json:"start_line"`
	EndLine    int            `json:"end_line"`
	LineEnding string         `json:"line_ending"`
	Lines      []NumberedLine `json:"lines"`
}
