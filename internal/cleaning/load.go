package cleaning

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"propfinder/server/internal/logging"
	"propfinder/server/internal/models"
)

var ErrMissingColumn = errors.New("missing required column")

// Dataset column names.
const (
	ColumnName      = "Property_Name"
	ColumnCity      = "City_name"
	ColumnType      = "Property_type"
	ColumnBedrooms  = "No_of_BHK"
	ColumnSize      = "Size"
	ColumnPrice     = "Price"
	ColumnLocality  = "Locality_Name"
	ColumnStatus    = "Property_status"
	ColumnLatitude  = "Latitude"
	ColumnLongitude = "Longitude"
)

var requiredColumns = []string{ColumnName, ColumnCity, ColumnType, ColumnBedrooms, ColumnSize, ColumnPrice}

// RawRow holds the uncleaned text of one listing. The db tags let SQL sources
// scan straight into it.
type RawRow struct {
	Name      string `db:"property_name"`
	City      string `db:"city_name"`
	Type      string `db:"property_type"`
	Bedrooms  string `db:"no_of_bhk"`
	Size      string `db:"size"`
	Price     string `db:"price"`
	Locality  string `db:"locality_name"`
	Status    string `db:"property_status"`
	Latitude  string `db:"latitude"`
	Longitude string `db:"longitude"`
}

// LoadReport summarises a best-effort load.
type LoadReport struct {
	Rows     int            `json:"rows"`
	Loaded   int            `json:"loaded"`
	Skipped  int            `json:"skipped"`
	Samples  int            `json:"samples"`
	Failures map[string]int `json:"failures"`
}

// Dataset is the cleaned, read-only result of a load.
type Dataset struct {
	Records []models.Property
	Samples []models.TrainingSample
	Report  LoadReport
}

// LoadFile opens path and loads it as CSV.
func LoadFile(path string, logger *logrus.Logger) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return Load(f, logger)
}

// Load reads a header-driven CSV. Rows that fail to clean are skipped and
// counted; only structural problems abort the load.
func Load(r io.Reader, logger *logrus.Logger) (*Dataset, error) {
	logger = logging.OrDefault(logger)

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	cell := func(record []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	b := newBuilder(logger)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				b.ds.Report.Rows++
				b.skip(line, "csv", err)
				continue
			}
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		b.add(line, RawRow{
			Name:      cell(record, ColumnName),
			City:      cell(record, ColumnCity),
			Type:      cell(record, ColumnType),
			Bedrooms:  cell(record, ColumnBedrooms),
			Size:      cell(record, ColumnSize),
			Price:     cell(record, ColumnPrice),
			Locality:  cell(record, ColumnLocality),
			Status:    cell(record, ColumnStatus),
			Latitude:  cell(record, ColumnLatitude),
			Longitude: cell(record, ColumnLongitude),
		})
	}

	return b.finish(), nil
}

// FromRows cleans rows that were read from a non-CSV source.
func FromRows(rows []RawRow, logger *logrus.Logger) *Dataset {
	b := newBuilder(logging.OrDefault(logger))
	for i, row := range rows {
		b.add(i+1, row)
	}
	return b.finish()
}

type builder struct {
	ds     *Dataset
	logger *logrus.Logger
}

func newBuilder(logger *logrus.Logger) *builder {
	return &builder{
		ds:     &Dataset{Report: LoadReport{Failures: make(map[string]int)}},
		logger: logger,
	}
}

func (b *builder) skip(line int, field string, err error) {
	b.ds.Report.Skipped++
	b.ds.Report.Failures[field]++
	b.logger.WithError(err).WithFields(logrus.Fields{
		"line":  line,
		"field": field,
	}).Debug("Skipping dataset row")
}

func (b *builder) add(line int, raw RawRow) {
	b.ds.Report.Rows++

	price, err := ParsePrice(raw.Price)
	if err != nil || price <= 0 {
		b.skip(line, "price", errOr(err, "price must be positive"))
		return
	}

	sample := models.TrainingSample{
		City:         strings.TrimSpace(raw.City),
		PropertyType: strings.TrimSpace(raw.Type),
		Price:        price,
	}

	size, sizeErr := ParseSize(raw.Size)
	if sizeErr == nil && size > 0 {
		sample.Size = &size
	}
	bedrooms, bedroomsErr := ParseBedroomCount(raw.Bedrooms)
	if bedroomsErr == nil && bedrooms >= 1 {
		bhk := float64(bedrooms)
		sample.Bedrooms = &bhk
	}
	b.ds.Samples = append(b.ds.Samples, sample)

	if sizeErr != nil {
		b.skip(line, "size", sizeErr)
		return
	}
	if bedroomsErr != nil {
		b.skip(line, "bedrooms", bedroomsErr)
		return
	}

	p := models.Property{
		Name:         strings.TrimSpace(raw.Name),
		City:         sample.City,
		PropertyType: sample.PropertyType,
		Bedrooms:     bedrooms,
		Size:         size,
		Price:        price,
		Locality:     strings.TrimSpace(raw.Locality),
		Status:       strings.TrimSpace(raw.Status),
	}

	lat, latErr := ParseCoordinate(raw.Latitude, MaxLatitude)
	lng, lngErr := ParseCoordinate(raw.Longitude, MaxLongitude)
	if latErr != nil || lngErr != nil {
		// Keep the listing, just without a location.
		b.ds.Report.Failures["coordinates"]++
	} else if lat != nil && lng != nil {
		p.Latitude, p.Longitude = lat, lng
	}

	p, err = models.NewProperty(p)
	if err != nil {
		b.skip(line, "record", err)
		return
	}
	b.ds.Records = append(b.ds.Records, p)
}

func (b *builder) finish() *Dataset {
	b.ds.Report.Loaded = len(b.ds.Records)
	b.ds.Report.Samples = len(b.ds.Samples)
	if b.ds.Report.Skipped > 0 {
		b.logger.WithFields(logrus.Fields{
			"rows":     b.ds.Report.Rows,
			"loaded":   b.ds.Report.Loaded,
			"skipped":  b.ds.Report.Skipped,
			"failures": b.ds.Report.Failures,
		}).Warn("Dataset loaded with skipped rows")
	}
	return b.ds
}

func errOr(err error, reason string) error {
	if err != nil {
		return err
	}
	return errors.New(reason)
}
