package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/priboy68rus/topdeck-compare/internal/metrics"
	"github.com/priboy68rus/topdeck-compare/internal/models"
)

const (
	scryfallBulkMetaURL = "https://api.scryfall.com/bulk-data/default_cards"
	bulkDataFile        = "scryfall-default-cards.json"
	bulkMetaFile        = "scryfall-default-cards.meta.json"
)

type scryfallBulkMeta struct {
	Object      string    `json:"object"`
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	UpdatedAt   time.Time `json:"updated_at"`
	DownloadURI string    `json:"download_uri"`
}

// BulkDataStore keeps a trimmed local copy of the Scryfall default_cards
// dataset in dataDir and refreshes it when Scryfall publishes a newer one.
type BulkDataStore struct {
	client         *http.Client
	downloadClient *http.Client
	dataDir        string
	metaURL        string
}

// NewBulkDataStore creates a store rooted at dataDir. timeout bounds the
// metadata request; downloadTimeout bounds the whole dataset transfer,
// including reading the body.
func NewBulkDataStore(dataDir string, timeout, downloadTimeout time.Duration) *BulkDataStore {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &BulkDataStore{
		client: &http.Client{
			Timeout: timeout,
		},
		downloadClient: &http.Client{
			Timeout:   downloadTimeout,
			Transport: transport,
		},
		dataDir: dataDir,
		metaURL: scryfallBulkMetaURL,
	}
}

func (s *BulkDataStore) dataPath() string { return filepath.Join(s.dataDir, bulkDataFile) }
func (s *BulkDataStore) metaPath() string { return filepath.Join(s.dataDir, bulkMetaFile) }

// HasLocalCopy reports whether a dataset has been downloaded before.
func (s *BulkDataStore) HasLocalCopy() bool {
	_, err := os.Stat(s.dataPath())
	return err == nil
}

// StoredMeta returns the persisted marker, or nil when there is none or it
// cannot be read.
func (s *BulkDataStore) StoredMeta() *models.BulkMeta {
	data, err := os.ReadFile(s.metaPath())
	if err != nil {
		return nil
	}
	var meta models.BulkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Printf("Warning: ignoring unreadable bulk metadata %s: %v", s.metaPath(), err)
		return nil
	}
	return &meta
}

// EnsureUpToDate downloads the dataset when Scryfall has a newer version or
// when there is no local copy. If the metadata endpoint is unreachable but a
// local copy exists, the stale copy is kept and no error is returned.
func (s *BulkDataStore) EnsureUpToDate(ctx context.Context) (bool, error) {
	local := s.StoredMeta()

	remote, err := s.fetchBulkMeta(ctx)
	if err != nil {
		if s.HasLocalCopy() {
			log.Printf("Warning: failed to check Scryfall bulk metadata, using local copy: %v", err)
			return false, nil
		}
		return false, err
	}

	needsDownload := !s.HasLocalCopy() || local == nil || remote.UpdatedAt.After(local.UpdatedAt)
	if !needsDownload {
		return false, nil
	}

	log.Printf("Updating Scryfall bulk data (updated_at %s)", remote.UpdatedAt.Format(time.RFC3339))
	if err := s.download(ctx, remote); err != nil {
		metrics.BulkDownloadsTotal.WithLabelValues("failed").Inc()
		return false, err
	}
	metrics.BulkDownloadsTotal.WithLabelValues("success").Inc()
	return true, nil
}

func (s *BulkDataStore) fetchBulkMeta(ctx context.Context) (*scryfallBulkMeta, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.metaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Scryfall metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch Scryfall metadata (%d)", resp.StatusCode)
	}

	var meta scryfallBulkMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode Scryfall metadata: %w", err)
	}
	if meta.DownloadURI == "" {
		return nil, errors.New("scryfall metadata has no download_uri")
	}
	return &meta, nil
}

// download streams the upstream array into a temporary file, keeping only
// the ScryfallCard fields, then renames it into place.
func (s *BulkDataStore) download(ctx context.Context, meta *scryfallBulkMeta) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", meta.DownloadURI, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.downloadClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download Scryfall data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download Scryfall data (%d)", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.dataDir, bulkDataFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	count, err := projectCards(resp.Body, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write Scryfall data: %w", err)
	}

	if err := os.Rename(tmpPath, s.dataPath()); err != nil {
		return fmt.Errorf("failed to move Scryfall data into place: %w", err)
	}

	stored, err := json.MarshalIndent(models.BulkMeta{
		UpdatedAt:    meta.UpdatedAt,
		DownloadedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode bulk metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(), stored, 0644); err != nil {
		return fmt.Errorf("failed to write bulk metadata: %w", err)
	}

	log.Printf("Scryfall bulk data updated: %d printings", count)
	return nil
}

// projectCards reads a JSON array of cards from r one element at a time and
// writes the projected array to w.
func projectCards(r io.Reader, w io.Writer) (int, error) {
	dec := json.NewDecoder(r)
	if err := expectDelim(dec, '['); err != nil {
		return 0, err
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := bw.WriteString("["); err != nil {
		return 0, err
	}

	count := 0
	for dec.More() {
		var card ScryfallCard
		if err := dec.Decode(&card); err != nil {
			return count, fmt.Errorf("failed to decode card %d: %w", count, err)
		}
		encoded, err := json.Marshal(&card)
		if err != nil {
			return count, err
		}
		if count > 0 {
			if err := bw.WriteByte(','); err != nil {
				return count, err
			}
		}
		if _, err := bw.Write(encoded); err != nil {
			return count, err
		}
		count++
	}

	if err := expectDelim(dec, ']'); err != nil {
		return count, err
	}
	if _, err := bw.WriteString("]"); err != nil {
		return count, err
	}
	return count, bw.Flush()
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected dataset token %v, want %q", tok, want)
	}
	return nil
}

// LoadCards makes sure the local dataset is current and decodes it. Any
// parse failure is returned; no partial dataset is served.
func (s *BulkDataStore) LoadCards(ctx context.Context) ([]ScryfallCard, error) {
	if _, err := s.EnsureUpToDate(ctx); err != nil {
		return nil, err
	}

	f, err := os.Open(s.dataPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open Scryfall data: %w", err)
	}
	defer f.Close()

	var cards []ScryfallCard
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&cards); err != nil {
		return nil, fmt.Errorf("failed to parse Scryfall data: %w", err)
	}
	return cards, nil
}
