package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stalestock/internal/domain"
)

var (
	ErrEmptyFile    = errors.New("file is empty")
	ErrMalformedCSV = errors.New("malformed csv")
)

// Encoding sources reported with every load.
const (
	SourceManual   = "manual"
	SourceDetected = "detected"
	SourceDefault  = "default"
	SourceFallback = "fallback"
	SourceLossy    = "lossy"
	SourceXLSX     = "xlsx"
)

// autoEncoding values ask for detection instead of a manual encoding.
var autoEncoding = map[string]bool{"": true, "auto": true, "自动检测": true}

type LoadOptions struct {
	FileName string
	// Encoding overrides detection unless empty or "auto".
	Encoding string
}

type LoadResult struct {
	Dataset        *domain.Dataset
	Encoding       string
	EncodingSource string
	Warnings       []string
}

// Loader turns raw uploaded bytes into a reconciled Dataset.
type Loader struct {
	resolver *Resolver
	aliases  AliasTable
	now      func() time.Time
}

func NewLoader(resolver *Resolver, aliases AliasTable) *Loader {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	if len(aliases) == 0 {
		aliases = DefaultAliasTable
	}
	return &Loader{resolver: resolver, aliases: aliases, now: time.Now}
}

func (l *Loader) Resolver() *Resolver { return l.resolver }

// Load decodes, parses, reconciles and derives metrics for one file. Decoding
// problems only produce warnings; parse and column errors are returned.
func (l *Loader) Load(data []byte, opts LoadOptions) (*LoadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		rows   [][]string
		result = &LoadResult{}
		err    error
	)

	if strings.EqualFold(filepath.Ext(opts.FileName), ".xlsx") {
		rows, err = readXLSXRows(data)
		if err != nil {
			return nil, err
		}
		result.Encoding, result.EncodingSource = "utf-8", SourceXLSX
	} else {
		rows, err = parseCSV(l.decode(data, opts.Encoding, result))
		if err != nil {
			return nil, err
		}
	}

	ds, err := l.build(rows)
	if err != nil {
		return nil, err
	}
	ds.FileName = opts.FileName
	ds.SizeBytes = int64(len(data))
	ds.Encoding = result.Encoding
	ds.EncodingSource = result.EncodingSource
	ds.LoadedAt = l.now()
	result.Dataset = ds

	log.Info().
		Str("file", opts.FileName).
		Str("encoding", result.Encoding).
		Str("encoding_source", result.EncodingSource).
		Int("rows", len(ds.Records)).
		Msg("dataset loaded")

	return result, nil
}

// decode runs the encoding chain: manual or detected encoding, then every
// candidate, then lossy UTF-8. It never fails; an unknown manual encoding
// goes straight to the candidates.
func (l *Loader) decode(data []byte, manual string, result *LoadResult) string {
	var enc Encoding
	source := SourceDetected

	if !autoEncoding[strings.ToLower(strings.TrimSpace(manual))] {
		var err error
		enc, err = LookupEncoding(manual)
		if err != nil {
			log.Warn().Err(err).Str("encoding", manual).Msg("manual encoding not recognised")
			enc = Encoding{Name: strings.TrimSpace(manual)}
		}
		source = SourceManual
	} else {
		var matched bool
		enc, matched = l.resolver.Detect(data)
		if !matched {
			source = SourceDefault
			l.warn(result, fmt.Sprintf("无法自动检测编码，使用默认编码%s", enc.Name))
		}
	}

	if enc.validate != nil {
		if text, err := Decode(data, enc); err == nil {
			result.Encoding, result.EncodingSource = enc.Name, source
			return text
		}
	}

	l.warn(result, fmt.Sprintf("%s编码失败，尝试其他编码...", enc.Name))
	for _, candidate := range l.resolver.Candidates() {
		if candidate.Name == enc.Name {
			continue
		}
		if text, err := Decode(data, candidate); err == nil {
			result.Encoding, result.EncodingSource = candidate.Name, SourceFallback
			l.warn(result, fmt.Sprintf("成功使用编码: %s", candidate.Name))
			return text
		}
	}

	result.Encoding, result.EncodingSource = "utf-8", SourceLossy
	l.warn(result, "使用错误处理模式，部分字符可能显示异常")
	return DecodeLossy(data)
}

func (l *Loader) warn(result *LoadResult, msg string) {
	log.Warn().Msg(msg)
	result.Warnings = append(result.Warnings, msg)
}

func parseCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

// build reconciles the header row and converts every data row to a Record.
func (l *Loader) build(rows [][]string) (*domain.Dataset, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	headers := normalizeHeaders(rows[0])

	// derived columns from a previous export are recomputed, never read
	kept := make([]int, 0, len(headers))
	keptHeaders := make([]string, 0, len(headers))
	for i, h := range headers {
		if isDerivedColumn(h) {
			continue
		}
		kept = append(kept, i)
		keptHeaders = append(keptHeaders, h)
	}

	mapping, err := Reconcile(keptHeaders, l.aliases)
	if err != nil {
		var missing *MissingColumnsError
		if errors.As(err, &missing) {
			missing.Headers = append([]string(nil), headers...)
		}
		return nil, err
	}

	rename := make(map[string]string, len(mapping)+1)
	for canonical, actual := range mapping {
		rename[actual] = canonical
	}
	dateHeader, hasDate := findDateColumn(keptHeaders, mapping)
	if hasDate {
		rename[dateHeader] = domain.ColDate
	}

	columns := make([]string, len(keptHeaders))
	for i, h := range keptHeaders {
		if canonical, ok := rename[h]; ok {
			columns[i] = canonical
		} else {
			columns[i] = h
		}
	}

	records := make([]domain.Record, 0, len(rows)-1)
	for line, row := range rows[1:] {
		if len(row) > len(headers) {
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d",
				ErrMalformedCSV, len(headers), line+2, len(row))
		}
		if isBlankRow(row) {
			continue
		}

		var rec domain.Record
		for j, idx := range kept {
			value := ""
			if idx < len(row) {
				value = row[idx]
			}
			assignField(&rec, columns[j], value)
		}
		Derive(&rec)
		records = append(records, rec)
	}

	return &domain.Dataset{
		Columns: columns,
		HasDate: hasDate,
		Records: records,
	}, nil
}

func assignField(rec *domain.Record, column, value string) {
	switch column {
	case domain.ColStore:
		rec.Store = value
	case domain.ColProduct:
		rec.Product = value
	case domain.ColCategory:
		rec.Category = value
	case domain.ColSKU:
		rec.SKU = value
	case domain.ColDate:
		rec.Date = value
	case domain.ColDailyAvg:
		rec.DailyAvg = CoerceNumber(value)
	case domain.ColPrevStale:
		rec.PrevStale = CoerceNumber(value)
	case domain.ColCurStale:
		rec.CurStale = CoerceNumber(value)
	default:
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[column] = value
	}
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
