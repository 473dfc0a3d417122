package models

// DirectiveSpec is the wire and plan-file form of one edit directive.
type DirectiveSpec struct {
	// Line is the 1-based anchor in the original file. 0 is valid for
	// insert_after and prepends.
	Line int `json:"line" yaml:"line"`
	// Action is "insert_after" or "replace".
	Action string `json:"action" yaml:"action"`
	// Content is the new line. A missing terminator is filled in with the
	// file's own line ending.
	Content string `json:"content" yaml:"content"`
	// Expect, if present, must equal the original anchor line (terminator ignored).
	Expect *string `json:"expect,omitempty" yaml:"expect,omitempty"`
	// Comment is free text for humans reading a plan; it is ignored.
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// PatchFileRequest asks the service to apply directives to one file.
type PatchFileRequest struct {
	Name       string          `json:"name"`
	Directives []DirectiveSpec `json:"directives"`
	// Strict rejects the whole batch if any directive fails.
	Strict bool `json:"strict,omitempty"`
	// DryRun computes the result and preview without writing.
	DryRun bool `json:"dry_run,omitempty"`
}

// DirectiveOutcome reports what happened to one directive.
type DirectiveOutcome struct {
	Index  int    `json:"index"`
	Line   int    `json:"line"`
	Action string `json:"action"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// PatchFileResponse is the result of a patch.
type PatchFileResponse struct {
	Name               string             `json:"name"`
	Success            bool               `json:"success"`
	Written            bool               `json:"written"`
	Applied            int                `json:"applied"`
	Skipped            int                `json:"skipped"`
	Failed             int                `json:"failed"`
	OriginalTotalLines int                `json:"original_total_lines"`
	NewTotalLines      int                `json:"new_total_lines"`
	Outcomes           []DirectiveOutcome `json:"outcomes"`
	// Diff is a unified diff of the file before and after the patch.
	Diff string `json:"diff,omitempty"`
}
