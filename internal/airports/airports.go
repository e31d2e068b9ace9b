// Package airports loads immutable airport reference data from an
// OurAirports-format CSV file and resolves IATA/ICAO codes to coordinates.
package airports

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mlenko/flightpath/internal/flight"
	"github.com/mlenko/flightpath/internal/geo"
	"github.com/mlenko/flightpath/pkg/logger"
)

// DB is an in-memory airport lookup table. Read-only after Load.
type DB struct {
	byIATA map[string]flight.Airport
	byICAO map[string]flight.Airport
	logger *logger.Logger
}

// Load parses an OurAirports-format CSV (ident, lat, lon, iata columns)
// into a lookup table. Rows with invalid coordinates are rejected: bad
// reference data is a data-integrity error, not something to clamp.
func Load(path string, log *logger.Logger) (*DB, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open airports database: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read airports CSV header: %w", err)
	}

	col := columnIndex(header)
	for _, name := range []string{"ident", "latitude_deg", "longitude_deg"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("airports CSV missing required column %q", name)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read airports CSV: %w", err)
	}

	db := &DB{
		byIATA: make(map[string]flight.Airport, len(records)),
		byICAO: make(map[string]flight.Airport, len(records)),
		logger: log.Named("airports"),
	}

	skipped := 0
	for _, record := range records {
		airport, ok := parseRecord(record, col)
		if !ok {
			skipped++
			continue
		}
		if airport.ICAO != "" {
			db.byICAO[airport.ICAO] = airport
		}
		if airport.IATA != "" {
			db.byIATA[airport.IATA] = airport
		}
	}

	db.logger.Info("Loaded airport database",
		logger.String("path", path),
		logger.Int("airports", len(db.byICAO)),
		logger.Int("skipped", skipped))

	return db, nil
}

func columnIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func parseRecord(record []string, col map[string]int) (flight.Airport, bool) {
	get := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	lat, err := strconv.ParseFloat(get("latitude_deg"), 64)
	if err != nil {
		return flight.Airport{}, false
	}
	lon, err := strconv.ParseFloat(get("longitude_deg"), 64)
	if err != nil {
		return flight.Airport{}, false
	}
	if geo.ValidateCoords(lat, lon) != nil {
		return flight.Airport{}, false
	}

	return flight.Airport{
		ICAO: strings.ToUpper(get("ident")),
		IATA: strings.ToUpper(get("iata_code")),
		Name: get("name"),
		Lat:  lat,
		Lon:  lon,
	}, true
}

// LookupIATA resolves an IATA code.
func (db *DB) LookupIATA(code string) (flight.Airport, bool) {
	a, ok := db.byIATA[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// LookupICAO resolves an ICAO code.
func (db *DB) LookupICAO(code string) (flight.Airport, bool) {
	a, ok := db.byICAO[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// Lookup resolves a code as IATA first, then ICAO.
func (db *DB) Lookup(code string) (flight.Airport, bool) {
	if a, ok := db.LookupIATA(code); ok {
		return a, true
	}
	return db.LookupICAO(code)
}
