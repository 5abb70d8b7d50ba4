package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pixelppo/internal/model"
)

// CSVOptions describes a table with one sample per row: Channels*Height*Width
// input values in channel-major order followed by Height*Width mask values.
type CSVOptions struct {
	HasHeader bool
	Channels  int
	Height    int
	Width     int
	// Normalize z-scores each input channel after loading.
	Normalize bool
}

func (o CSVOptions) Validate() error {
	if o.Channels <= 0 {
		return errors.New("channels must be > 0")
	}
	if o.Height <= 0 || o.Width <= 0 {
		return errors.New("height and width must be > 0")
	}
	return nil
}

func (o CSVOptions) columns() (int, int) {
	plane := o.Height * o.Width
	return o.Channels * plane, plane
}

// ReadCSV loads every non-blank row of in as a sample.
func ReadCSV(in io.Reader, opts CSVOptions) ([]model.Sample, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	inputCols, maskCols := opts.columns()

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	row := 0
	if opts.HasHeader {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		row++
	}

	var out []model.Sample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row+1, err)
		}
		row++
		if blankRecord(record) {
			continue
		}
		if len(record) != inputCols+maskCols {
			return nil, fmt.Errorf("csv row %d has %d columns, want %d", row, len(record), inputCols+maskCols)
		}
		values, err := parseRow(record, row)
		if err != nil {
			return nil, err
		}
		input, err := model.FieldFrom(opts.Channels, opts.Height, opts.Width, values[:inputCols])
		if err != nil {
			return nil, err
		}
		target, err := model.FieldFrom(1, opts.Height, opts.Width, values[inputCols:])
		if err != nil {
			return nil, err
		}
		if opts.Normalize {
			Normalize(input)
		}
		out = append(out, model.Sample{Input: input, Target: target})
	}
	return out, nil
}

// NewCSVSource reads all of in and serves it as an in-memory source.
func NewCSVSource(name string, in io.Reader, opts CSVOptions) (*SliceSource, error) {
	samples, err := ReadCSV(in, opts)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySource)
	}
	return NewSliceSource(name, samples), nil
}

func parseRow(record []string, row int) ([]float64, error) {
	values := make([]float64, len(record))
	for i, cell := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil {
			return nil, fmt.Errorf("csv row %d column %d: %w", row, i, err)
		}
		values[i] = v
	}
	return values, nil
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
