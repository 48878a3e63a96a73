package master

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Files maps segment keys to the public master archives the broker publishes.
var Files = map[string]string{
	"NSE_CASH": "nsecash.zip",
	"NSE_FNO":  "nsefno.zip",
	"BSE_CASH": "bsecash.zip",
	"BSE_FNO":  "bsefno.zip",
	"MCX_FNO":  "mcxfno.zip",
	"ALL":      "allmaster.zip",
}

// Downloader is the slice of the transport client the sync needs.
type Downloader interface {
	DownloadMasterZip(ctx context.Context, zipName, destPath string) (string, error)
}

// Sync downloads the archive for fileKey, extracts every CSV inside it,
// and upserts the parsed instruments into the store. Returns the number of
// instruments written.
func Sync(ctx context.Context, dl Downloader, store *Store, fileKey string) (int, error) {
	zipName, ok := Files[fileKey]
	if !ok {
		return 0, fmt.Errorf("unknown master file key %q", fileKey)
	}

	tmpDir, err := os.MkdirTemp("", "master-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmpDir)

	zipPath := filepath.Join(tmpDir, zipName)
	log.Printf("[master] downloading %s", zipName)
	if _, err := dl.DownloadMasterZip(ctx, zipName, zipPath); err != nil {
		return 0, fmt.Errorf("download %s: %w", zipName, err)
	}

	instruments, err := parseArchive(zipPath)
	if err != nil {
		return 0, err
	}
	if err := store.Upsert(ctx, instruments); err != nil {
		return 0, fmt.Errorf("store instruments: %w", err)
	}
	log.Printf("[master] stored %d instruments from %s", len(instruments), zipName)
	return len(instruments), nil
}

func parseArchive(zipPath string) ([]Instrument, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var instruments []Instrument
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		rows, err := parseMasterCSV(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		instruments = append(instruments, rows...)
	}
	return instruments, nil
}

// parseMasterCSV reads headerless master rows. The leading columns are
// segment, token, symbol, tradingsymbol, instrument type, then per-segment
// extras (tick size, lot size). Rows missing the mandatory leading fields
// are skipped.
func parseMasterCSV(r io.Reader) ([]Instrument, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []Instrument
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 4 {
			continue
		}
		ins := Instrument{
			Segment:       strings.TrimSpace(rec[0]),
			Token:         strings.TrimSpace(rec[1]),
			Symbol:        strings.TrimSpace(rec[2]),
			TradingSymbol: strings.TrimSpace(rec[3]),
		}
		if ins.Segment == "" || ins.Token == "" {
			continue
		}
		if len(rec) > 4 {
			ins.InstrumentType = strings.TrimSpace(rec[4])
		}
		if len(rec) > 5 {
			ins.TickSize = strings.TrimSpace(rec[5])
		}
		if len(rec) > 6 {
			ins.LotSize = strings.TrimSpace(rec[6])
		}
		out = append(out, ins)
	}
	return out, nil
}
