// Package importer loads address records produced by the geographic extract
// into the store, from either the flat text dump or a county address-point
// shapefile.
package importer

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/model"
	"github.com/propwatch/appraisal-cli/internal/store"
)

// Result summarizes one import pass.
type Result struct {
	Imported int
	Skipped  int
}

// ImportLines reads the extract's flat format, one address per line:
//
//	housenumber street, city, state, zipcode, lat, lon
//
// Lines without a zip code or with malformed coordinates are skipped, not
// fatal: the extract is noisy by nature.
func ImportLines(ctx context.Context, r io.Reader, st store.Store) (*Result, error) {
	log := zap.L().With(zap.String("component", "importer"))

	res := &Result{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			log.Warn("skipping malformed address line",
				zap.Int("line", lineNo), zap.Error(err))
			res.Skipped++
			continue
		}

		if _, err := st.InsertAddress(ctx, rec); err != nil {
			return res, eris.Wrapf(err, "importer: insert line %d", lineNo)
		}
		res.Imported++
	}
	if err := scanner.Err(); err != nil {
		return res, eris.Wrap(err, "importer: read input")
	}

	log.Info("address import complete",
		zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped))
	return res, nil
}

func parseLine(line string) (model.AddressRecord, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return model.AddressRecord{}, eris.Errorf("want 6 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	street := parts[0]
	houseNumber, rest, found := strings.Cut(street, " ")
	if !found {
		return model.AddressRecord{}, eris.Errorf("no street in %q", street)
	}

	if parts[3] == "" {
		return model.AddressRecord{}, eris.New("missing zip code")
	}

	lat, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return model.AddressRecord{}, eris.Wrap(err, "parse lat")
	}
	lon, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return model.AddressRecord{}, eris.Wrap(err, "parse lon")
	}

	return model.AddressRecord{
		HouseNumber: houseNumber,
		Street:      rest,
		City:        parts[1],
		State:       parts[2],
		ZipCode:     parts[3],
		Lat:         lat,
		Lon:         lon,
	}, nil
}
