// File Processing Tool.
//
// Information Hiding:
// - Document format detection and parsing hidden
// - Base directory confinement hidden

package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/richinex/toolhub/model"
	"github.com/xuri/excelize/v2"
)

// MaxFileChars bounds the file content returned to the model.
const MaxFileChars = 10000

// maxSheetCells limits cells rendered per spreadsheet sheet.
const maxSheetCells = 1000

// ErrFileNotFound is returned for a file missing from the base directory.
var ErrFileNotFound = errors.New("file not found")

// FileProcessor extracts the text content of a task file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, fileName string) (string, error)
}

// DocumentProcessor reads files under a base directory, extracting text
// from PDF, Word and Excel documents and reading anything else as text.
type DocumentProcessor struct {
	baseDir string
}

// NewDocumentProcessor creates a processor rooted at baseDir.
func NewDocumentProcessor(baseDir string) *DocumentProcessor {
	return &DocumentProcessor{baseDir: baseDir}
}

// ProcessFile returns the file's text, truncated to MaxFileChars.
func (p *DocumentProcessor) ProcessFile(ctx context.Context, fileName string) (string, error) {
	path := filepath.Join(p.baseDir, fileName)
	if p.baseDir != "" && !pathAllowed(path, []string{p.baseDir}) {
		return "", fmt.Errorf("access denied: %s is outside the file directory", fileName)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = pdfText(ctx, path, info.Size())
	case ".docx":
		text, err = docxText(path)
	case ".xlsx":
		text, err = xlsxText(ctx, path)
	default:
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	}
	if err != nil {
		return "", err
	}
	return truncateRunes(text, MaxFileChars), nil
}

func pdfText(ctx context.Context, path string, size int64) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF file: %w", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, size)
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", n, text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func docxText(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}

func xlsxText(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse Excel document: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "--- Sheet: %s ---\n", sheet)
		cells := 0
	scan:
		for r, row := range rows {
			for c, cell := range row {
				if cells >= maxSheetCells {
					b.WriteString("... (truncated)\n")
					break scan
				}
				if text := strings.TrimSpace(cell); text != "" {
					name, err := excelize.CoordinatesToCellName(c+1, r+1)
					if err != nil {
						continue
					}
					fmt.Fprintf(&b, "%s: %s\n", name, text)
					cells++
				}
			}
		}
		parts = append(parts, strings.TrimSpace(b.String()))
	}
	return strings.Join(parts, "\n\n"), nil
}

// ProcessFileTool answers process_file calls.
type ProcessFileTool struct {
	processor FileProcessor
}

type processFileArgs struct {
	FileName string `json:"file_name" jsonschema:"required,description=Name of the file to process"`
}

// NewProcessFileTool creates the process_file tool.
func NewProcessFileTool(processor FileProcessor) *ProcessFileTool {
	return &ProcessFileTool{processor: processor}
}

// Spec returns the tool signature.
func (t *ProcessFileTool) Spec() model.ToolSpec {
	return model.ToolSpec{
		Name:        "process_file",
		Description: "Process and read the content of a file",
		Parameters:  schemaFor[processFileArgs](),
	}
}

// Execute reads the named file.
func (t *ProcessFileTool) Execute(ctx context.Context, args map[string]any) model.Result {
	var a processFileArgs
	if err := decodeArgs(args, &a); err != nil || a.FileName == "" {
		return model.Errorf("Missing required parameter: file_name")
	}
	if t.processor == nil {
		return model.Errorf("File processing is not configured")
	}

	content, err := t.processor.ProcessFile(ctx, a.FileName)
	if errors.Is(err, ErrFileNotFound) {
		return model.Errorf("File not found: %s", a.FileName)
	}
	if err != nil {
		return model.Errorf("Failed to process file: %v", err)
	}
	return model.OK(map[string]any{"content": content})
}
