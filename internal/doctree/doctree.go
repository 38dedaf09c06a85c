package doctree

// ElementType classifies an item found on a page.
type ElementType string

const (
	ElementText    ElementType = "text"
	ElementTable   ElementType = "table"
	ElementImage   ElementType = "image"
	ElementHeading ElementType = "heading"
)

// BBox is a rectangle in page coordinates (x0, y0, x1, y1).
type BBox [4]float64

// Span is a run of text sharing one font size, in reading order.
type Span struct {
	Text     string  `json:"text"`
	FontSize float64 `json:"font_size"`
	Page     int     `json:"page"`
}

// TableData is a detected table. Rows may be ragged.
type TableData struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
	Page    int        `json:"page"`
	BBox    *BBox      `json:"bbox,omitempty"`
}

// ImageData describes an embedded raster image.
type ImageData struct {
	Filename string `json:"filename"`
	Page     int    `json:"page"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BBox     *BBox  `json:"bbox,omitempty"`
}

// PageElement is a positioned item used for visualisation.
type PageElement struct {
	Type    ElementType `json:"type"`
	Content string      `json:"content"`
	Page    int         `json:"page"`
	BBox    *BBox       `json:"bbox,omitempty"`
}

// PageResult is everything extracted from one page.
type PageResult struct {
	PageNumber int           `json:"page_number"` // 1-indexed
	Markdown   string        `json:"markdown"`
	RawText    string        `json:"raw_text,omitempty"`
	Tables     []TableData   `json:"tables,omitempty"`
	Images     []ImageData   `json:"images,omitempty"`
	Elements   []PageElement `json:"elements,omitempty"`
	Spans      []Span        `json:"spans,omitempty"`
}

// Document is a parsed input file, ready for structure detection.
type Document struct {
	Title  string       `json:"title"`
	Source string       `json:"source"` // Stable name used in chunk IDs, usually the file stem.
	Pages  []PageResult `json:"pages"`
}

// Section is a detected heading and the text it introduces.
type Section struct {
	Title     string `json:"title" yaml:"title"`
	Level     int    `json:"level" yaml:"level"`
	Content   string `json:"content" yaml:"content"`
	StartPage int    `json:"start_page" yaml:"start_page"`
	EndPage   int    `json:"end_page" yaml:"end_page"`
}

// Metadata keys used on chunks.
const (
	MetaSectionTitle  = "section_title"
	MetaSectionLevel  = "section_level"
	MetaStartPage     = "start_page"
	MetaEndPage       = "end_page"
	MetaSource        = "source"
	MetaPage          = "page"
	MetaElementType   = "element_type"
	MetaSubChunkIndex = "sub_chunk_index"
)

// Chunk is a bounded piece of content ready for embedding.
type Chunk struct {
	ID         string         `json:"id" yaml:"id"`
	Content    string         `json:"content" yaml:"content"`
	Metadata   map[string]any `json:"metadata" yaml:"metadata"`
	TokenCount int            `json:"token_count,omitempty" yaml:"token_count,omitempty"`
}

// IntMeta returns an integer metadata value. Values decoded from JSON
// arrive as float64 and are converted.
func (c Chunk) IntMeta(key string) (int, bool) {
	switch v := c.Metadata[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// StringMeta returns a string metadata value.
func (c Chunk) StringMeta(key string) string {
	s, _ := c.Metadata[key].(string)
	return s
}

// IsTable reports whether the chunk holds a serialized table.
func (c Chunk) IsTable() bool {
	return c.StringMeta(MetaElementType) == string(ElementTable)
}
