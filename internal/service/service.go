// Package service runs patch plans against files in a working directory.
package service

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"line-patcher/internal/config"
	"line-patcher/internal/errors"
	"line-patcher/internal/filesystem"
	"line-patcher/internal/lock"
	"line-patcher/internal/models"
	"line-patcher/internal/patch"
	"line-patcher/internal/preview"
)

const (
	defaultMaxLineCount      = 100000
	defaultMaxFilenameLength = 255
	defaultAroundContext     = 5
)

// PatchService is what the transports and the CLI need.
type PatchService interface {
	PatchFile(ctx context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail)
	ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail)
}

// DefaultPatchService implements PatchService on top of a FileSystemAdapter
// and an OS-level lock manager.
type DefaultPatchService struct {
	fsAdapter     filesystem.FileSystemAdapter
	lockManager   lock.LockManagerInterface
	logger        *zap.Logger
	renderer      *preview.Renderer
	workingDir    string
	maxFileSize   int64 // in bytes
	maxLineCount  int
	maxDirectives int
	opTimeout     time.Duration
	filenameRegex *regexp.Regexp
}

// NewDefaultPatchService creates a new DefaultPatchService. A nil logger is
// replaced by a no-op logger.
func NewDefaultPatchService(
	fsa filesystem.FileSystemAdapter,
	lm lock.LockManagerInterface,
	cfg *config.Config,
	logger *zap.Logger,
) (*DefaultPatchService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if fsa == nil {
		return nil, fmt.Errorf("filesystem adapter is required")
	}
	if lm == nil {
		return nil, fmt.Errorf("lock manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	absWorkingDir, err := filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path for working directory: %w", err)
	}
	// Resolve the root itself so the post-symlink prefix check compares like with like.
	if resolved, err := filepath.EvalSymlinks(absWorkingDir); err == nil {
		absWorkingDir = resolved
	}
	stats, err := fsa.GetFileStats(absWorkingDir)
	if err != nil {
		return nil, fmt.Errorf("error accessing working directory %s: %w", absWorkingDir, err)
	}
	if !stats.IsDir {
		return nil, fmt.Errorf("working directory path is not a directory: %s", absWorkingDir)
	}

	return &DefaultPatchService{
		fsAdapter:     fsa,
		lockManager:   lm,
		logger:        logger,
		renderer:      preview.NewRenderer(preview.DefaultContext, cfg.Color),
		workingDir:    absWorkingDir,
		maxFileSize:   int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		maxLineCount:  defaultMaxLineCount,
		maxDirectives: cfg.MaxDirectives,
		opTimeout:     cfg.OperationTimeout(),
		filenameRegex: regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`),
	}, nil
}

func (s *DefaultPatchService) resolveAndValidatePath(filename string) (string, *models.ErrorDetail) {
	if len(filename) == 0 || len(filename) > defaultMaxFilenameLength {
		return "", errors.NewInvalidParamsError(
			fmt.Sprintf("Filename length must be between 1 and %d characters.", defaultMaxFilenameLength),
			map[string]interface{}{"filename": filename, "length": len(filename)},
			filename, "path_resolution",
		)
	}
	if !s.filenameRegex.MatchString(filename) {
		return "", errors.NewInvalidParamsError("Filename contains invalid characters.", map[string]interface{}{"filename": filename}, filename, "path_resolution")
	}
	if filepath.IsAbs(filename) {
		return "", errors.NewInvalidParamsError("Filename must be relative to the working directory.", map[string]interface{}{"filename": filename}, filename, "path_resolution")
	}

	cleanedPath := filepath.Clean(filepath.Join(s.workingDir, filename))
	if !within(s.workingDir, cleanedPath) {
		return "", errors.NewInvalidParamsError("Path traversal attempt detected (pre-symlink).", map[string]interface{}{"filename": filename}, filename, "path_resolution")
	}

	resolvedPath, err := s.fsAdapter.EvalSymlinks(cleanedPath)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return "", errors.NewFileNotFoundError(filename, "eval_symlinks_path_not_found")
		}
		if stdErrors.Is(err, fs.ErrPermission) {
			return "", errors.NewPermissionDeniedError(filename, "eval_symlinks_permission")
		}
		return "", errors.NewFileSystemError(filename, "eval_symlinks", fmt.Sprintf("Error evaluating symlinks: %v", err))
	}
	if !within(s.workingDir, resolvedPath) {
		return "", errors.NewInvalidParamsError("Path traversal attempt detected (post-symlink).", map[string]interface{}{"filename": filename, "resolved_path": resolvedPath}, filename, "path_resolution")
	}
	return cleanedPath, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// fsError classifies an adapter error for the given operation.
func fsError(filename, operation string, err error) *models.ErrorDetail {
	switch {
	case stdErrors.Is(err, fs.ErrNotExist):
		return errors.NewFileNotFoundError(filename, operation)
	case stdErrors.Is(err, fs.ErrPermission):
		return errors.NewPermissionDeniedError(filename, operation)
	default:
		return errors.NewFileSystemError(filename, operation, err.Error())
	}
}

// loadLines reads, size-checks and splits a target file. It also returns
// the file mode so writes can preserve it.
func (s *DefaultPatchService) loadLines(filePath, name, operation string) ([]string, fs.FileMode, *models.ErrorDetail) {
	stats, err := s.fsAdapter.GetFileStats(filePath)
	if err != nil {
		return nil, 0, fsError(name, "get_stats", err)
	}
	if stats.IsDir {
		return nil, 0, errors.NewInvalidParamsError(fmt.Sprintf("Path '%s' is a directory, not a file.", name), map[string]interface{}{"filename": name}, name, operation+"_validation")
	}
	if stats.Size > s.maxFileSize {
		return nil, 0, errors.NewFileTooLargeError(name, operation, stats.Size, int(s.maxFileSize/(1024*1024)))
	}

	content, err := s.fsAdapter.ReadFileBytes(filePath)
	if err != nil {
		return nil, 0, fsError(name, "read_bytes", err)
	}
	if !s.fsAdapter.IsValidUTF8(content) {
		return nil, 0, errors.NewInvalidEncodingError(name, operation, "File content is not valid UTF-8")
	}

	lines := s.fsAdapter.SplitLinesKeepEnds(content)
	if len(lines) > s.maxLineCount {
		return nil, 0, errors.NewInvalidParamsError(fmt.Sprintf("File exceeds maximum line count of %d.", s.maxLineCount),
			map[string]interface{}{"line_count": len(lines), "max_line_count": s.maxLineCount}, name, operation+"_validation")
	}
	return lines, stats.Mode, nil
}

// ReadFile returns a numbered window of a file.
func (s *DefaultPatchService) ReadFile(req models.ReadFileRequest) (*models.ReadFileResponse, *models.ErrorDetail) {
	filePath, errDetail := s.resolveAndValidatePath(req.Name)
	if errDetail != nil {
		return nil, errDetail
	}
	if req.StartLine < 0 || req.EndLine < 0 || req.Around < 0 || req.Context < 0 {
		return nil, errors.NewInvalidParamsError("Line numbers and context must not be negative.",
			map[string]interface{}{"start_line": req.StartLine, "end_line": req.EndLine, "around": req.Around, "context": req.Context}, req.Name, "read_validation")
	}
	if req.Around > 0 && (req.StartLine > 0 || req.EndLine > 0) {
		return nil, errors.NewInvalidParamsError("around cannot be combined with start_line or end_line.", nil, req.Name, "read_validation")
	}
	if req.StartLine > 0 && req.EndLine > 0 && req.StartLine > req.EndLine {
		return nil, errors.NewInvalidParamsError("start_line cannot be greater than end_line.",
			map[string]interface{}{"start_line": req.StartLine, "end_line": req.EndLine}, req.Name, "read_validation")
	}

	lines, _, errDetail := s.loadLines(filePath, req.Name, "read")
	if errDetail != nil {
		return nil, errDetail
	}
	total := len(lines)

	start, end := req.StartLine, req.EndLine
	if req.Around > 0 {
		if req.Around > total {
			return nil, errors.NewInvalidParamsError(fmt.Sprintf("around %d is greater than total lines %d.", req.Around, total),
				map[string]interface{}{"around": req.Around, "total_lines": total}, req.Name, "read_validation")
		}
		ctxLines := req.Context
		if ctxLines == 0 {
			ctxLines = defaultAroundContext
		}
		start, end = req.Around-ctxLines, req.Around+ctxLines
	}
	start = max(start, 1)
	if end == 0 || end > total {
		end = total
	}
	if total > 0 && start > total {
		return nil, errors.NewInvalidParamsError(fmt.Sprintf("start_line %d is greater than total lines %d.", start, total),
			map[string]interface{}{"start_line": start, "total_lines": total}, req.Name, "read_validation")
	}

	numbered := make([]models.NumberedLine, 0, max(end-start+1, 0))
	for n := start; n <= end; n++ {
		numbered = append(numbered, models.NumberedLine{Number: n, Content: trimEOL(lines[n-1])})
	}

	return &models.ReadFileResponse{
		Name:       req.Name,
		TotalLines: total,
		StartLine:  start,
		EndLine:    end,
		LineEnding: lineEndingName(s.fsAdapter.DetectLineEnding(lines)),
		Lines:      numbered,
	}, nil
}

// PatchFile applies the directives of req to the named file while holding
// its lock. Nothing is written for dry runs, for batches where nothing
// applied, or for strict batches with a failure.
func (s *DefaultPatchService) PatchFile(ctx context.Context, req models.PatchFileRequest) (*models.PatchFileResponse, *models.ErrorDetail) {
	filePath, errDetail := s.resolveAndValidatePath(req.Name)
	if errDetail != nil {
		return nil, errDetail
	}
	if errDetail := s.validateDirectives(req); errDetail != nil {
		return nil, errDetail
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	fileLock, err := s.lockManager.AcquireLock(ctx, filePath, s.opTimeout)
	if err != nil {
		return nil, errors.NewOperationLockFailedError(req.Name, "patch", err.Error())
	}
	defer func() {
		if err := s.lockManager.ReleaseLock(fileLock); err != nil {
			s.logger.Warn("Failed to release lock", zap.String("file", req.Name), zap.Error(err))
		}
	}()

	original, mode, errDetail := s.loadLines(filePath, req.Name, "patch")
	if errDetail != nil {
		return nil, errDetail
	}

	eol := s.fsAdapter.DetectLineEnding(original)
	directives := toDirectives(req.Directives, original, eol)
	patched, report := patch.Apply(original, directives, patch.Options{FailFast: req.Strict})
	patched = fixTerminators(original, patched, eol)

	outcomes := toOutcomes(req.Directives, report)
	for _, o := range report.Failed() {
		s.logger.Debug("Directive failed",
			zap.String("file", req.Name),
			zap.Int("index", o.Index),
			zap.Stringer("directive", o.Directive),
			zap.Error(o.Reason))
	}

	if req.Strict && !report.OK() {
		s.logger.Info("Strict patch rejected", zap.String("file", req.Name), zap.Int("failed", len(report.Failed())))
		return nil, errors.NewPatchRejectedError(req.Name, len(report.Failed()), outcomes)
	}

	if len(patched) > s.maxLineCount {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("Patch results in file exceeding maximum line count of %d (new count: %d).", s.maxLineCount, len(patched)),
			map[string]interface{}{"new_line_count": len(patched), "max_line_count": s.maxLineCount}, req.Name, "patch_validation")
	}
	content := s.fsAdapter.JoinLines(patched)
	if int64(len(content)) > s.maxFileSize {
		return nil, errors.NewFileTooLargeError(req.Name, "patch_write", int64(len(content)), int(s.maxFileSize/(1024*1024)))
	}

	diff, _ := s.renderer.Unified(req.Name, original, patched)

	resp := &models.PatchFileResponse{
		Name:               req.Name,
		Success:            report.OK(),
		Applied:            report.Applied(),
		Skipped:            report.Skipped(),
		Failed:             len(report.Failed()),
		OriginalTotalLines: len(original),
		NewTotalLines:      len(patched),
		Outcomes:           outcomes,
		Diff:               diff,
	}

	if req.DryRun || report.Applied() == 0 {
		s.logger.Debug("Patch not written", zap.String("file", req.Name), zap.Bool("dry_run", req.DryRun), zap.Int("applied", resp.Applied))
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewOperationLockFailedError(req.Name, "patch", fmt.Sprintf("operation deadline exceeded before write: %v", err))
	}
	if err := s.fsAdapter.WriteFileBytesAtomic(filePath, content, mode); err != nil {
		return nil, fsError(req.Name, "write_atomic", err)
	}
	resp.Written = true

	s.logger.Info("Patch written",
		zap.String("file", req.Name),
		zap.Int("applied", resp.Applied),
		zap.Int("skipped", resp.Skipped),
		zap.Int("failed", resp.Failed),
		zap.Int("lines_before", resp.OriginalTotalLines),
		zap.Int("lines_after", resp.NewTotalLines))
	return resp, nil
}

func (s *DefaultPatchService) validateDirectives(req models.PatchFileRequest) *models.ErrorDetail {
	if len(req.Directives) == 0 {
		return errors.NewInvalidParamsError("At least one directive is required.", nil, req.Name, "patch_validation")
	}
	if len(req.Directives) > s.maxDirectives {
		return errors.NewInvalidParamsError(
			fmt.Sprintf("Number of directives exceeds maximum allowed of %d.", s.maxDirectives),
			map[string]interface{}{"num_directives": len(req.Directives), "max_directives": s.maxDirectives},
			req.Name, "patch_validation",
		)
	}
	for i, d := range req.Directives {
		if !utf8.ValidString(d.Content) {
			return errors.NewInvalidParamsError(fmt.Sprintf("Directive #%d: content contains invalid UTF-8 encoding.", i+1),
				map[string]interface{}{"index": i}, req.Name, "patch_validation")
		}
		if strings.ContainsAny(trimEOL(d.Content), "\r\n") {
			return errors.NewInvalidParamsError(fmt.Sprintf("Directive #%d: content must be a single line.", i+1),
				map[string]interface{}{"index": i}, req.Name, "patch_validation")
		}
	}
	return nil
}

// toDirectives converts wire directives. Unknown actions become directives
// with a zero Kind so the engine reports them per directive. A payload
// without a terminator takes the anchor line's terminator for replaces and
// eol for inserts.
func toDirectives(specs []models.DirectiveSpec, original []string, eol string) []patch.Directive {
	out := make([]patch.Directive, len(specs))
	for i, ds := range specs {
		kind, _ := patch.ParseKind(ds.Action)
		payload := ds.Content
		if !strings.HasSuffix(payload, "\n") {
			term := eol
			if kind == patch.ReplaceAt && ds.Line >= 1 && ds.Line <= len(original) {
				term = terminator(original[ds.Line-1])
			}
			payload += term
		}
		out[i] = patch.Directive{Line: ds.Line, Kind: kind, Payload: payload, Expect: ds.Expect}
	}
	return out
}

// fixTerminators keeps the patched file well formed: every line but the
// last ends in a terminator, and a file that had no trailing newline still
// has none.
func fixTerminators(original, patched []string, eol string) []string {
	for i := 0; i < len(patched)-1; i++ {
		if !strings.HasSuffix(patched[i], "\n") {
			patched[i] += eol
		}
	}
	if n := len(original); n > 0 && terminator(original[n-1]) == "" && len(patched) > 0 {
		patched[len(patched)-1] = trimEOL(patched[len(patched)-1])
	}
	return patched
}

func toOutcomes(specs []models.DirectiveSpec, report patch.Report) []models.DirectiveOutcome {
	out := make([]models.DirectiveOutcome, len(report.Outcomes))
	for i, o := range report.Outcomes {
		action := o.Directive.Kind.String()
		if o.Directive.Kind == 0 {
			action = specs[i].Action
		}
		out[i] = models.DirectiveOutcome{
			Index:  o.Index,
			Line:   o.Directive.Line,
			Action: action,
			Status: o.Status.String(),
		}
		if o.Reason != nil {
			out[i].Reason = o.Reason.Error()
		}
	}
	return out
}

func terminator(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

func lineEndingName(eol string) string {
	if eol == "\r\n" {
		return "crlf"
	}
	return "lf"
}
