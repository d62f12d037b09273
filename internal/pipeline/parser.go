package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"taxi-platform/internal/models"
)

// Parser turns a raw CSV trip export into candidate records. A malformed row
// never fails the stream; whatever fields are present are carried through and
// the validator decides what to do with them.
type Parser struct {
	reader  *csv.Reader
	columns map[string]int
	next    int
}

// NewParser reads the header row and prepares a parser for the remaining rows.
func NewParser(r io.Reader) (*Parser, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	return &Parser{reader: cr, columns: columns}, nil
}

// Next returns the next candidate record, or io.EOF when the input is
// exhausted. Rows with the wrong field count are still returned; missing
// columns come back as empty strings.
func (p *Parser) Next() (*models.RawTripRecord, error) {
	row, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		// Quoting errors and the like: surface the row as an empty candidate
		// so the run keeps its row accounting instead of aborting.
		if _, ok := err.(*csv.ParseError); ok {
			record := &models.RawTripRecord{RowIndex: p.next}
			p.next++
			return record, nil
		}
		return nil, fmt.Errorf("failed to read row %d: %w", p.next, err)
	}

	record := &models.RawTripRecord{
		RowIndex:         p.next,
		TripID:           p.field(row, "id"),
		VendorID:         p.field(row, "vendor_id"),
		PickupDatetime:   p.field(row, "pickup_datetime"),
		DropoffDatetime:  p.field(row, "dropoff_datetime"),
		PickupLongitude:  p.field(row, "pickup_longitude"),
		PickupLatitude:   p.field(row, "pickup_latitude"),
		DropoffLongitude: p.field(row, "dropoff_longitude"),
		DropoffLatitude:  p.field(row, "dropoff_latitude"),
		PassengerCount:   p.field(row, "passenger_count"),
		StoreAndFwdFlag:  p.field(row, "store_and_fwd_flag"),
		TripDuration:     p.field(row, "trip_duration"),
		TripDistance:     p.field(row, "trip_distance"),
		FareAmount:       p.field(row, "fare_amount"),
		TipAmount:        p.field(row, "tip_amount"),
	}
	p.next++

	return record, nil
}

func (p *Parser) field(row []string, name string) string {
	idx, ok := p.columns[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
