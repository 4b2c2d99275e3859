package upstox

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ahmethakanbesel/nse-scanner/internal/market"
)

const defaultInstrumentsURL = "https://assets.upstox.com/market-quote/instruments/exchange/NSE.csv.gz"

type instrument struct {
	symbol string
	upper  string
	// upper with '&', '-' and spaces removed, for prefix matching.
	squashed string
	key      string
}

// Instruments maps NSE trading symbols to Upstox instrument keys. The master
// list is downloaded once; resolved aliases are cached.
type Instruments struct {
	url    string
	client *http.Client

	loaded atomic.Bool
	loadMu sync.Mutex
	list   []instrument
	exact  map[string]string
	upper  map[string]string

	aliasMu sync.RWMutex
	aliases map[string]string
}

func NewInstruments(client *http.Client, url string) *Instruments {
	if url == "" {
		url = defaultInstrumentsURL
	}
	return &Instruments{
		url:     url,
		client:  client,
		aliases: make(map[string]string),
	}
}

// Load downloads the instrument master if it has not been loaded yet.
// Concurrent callers wait for a single download.
func (in *Instruments) Load(ctx context.Context) error {
	if in.loaded.Load() {
		return nil
	}
	in.loadMu.Lock()
	defer in.loadMu.Unlock()
	if in.loaded.Load() {
		return nil
	}

	slog.Info("loading upstox instrument master", "url", in.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.url, nil)
	if err != nil {
		return fmt.Errorf("build instruments request: %w", err)
	}
	res, err := in.client.Do(req) //nolint:gosec // URL from internal config
	if err != nil {
		return fmt.Errorf("fetch instruments: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("instruments endpoint returned HTTP %d", res.StatusCode)
	}

	list, err := parseInstruments(res.Body)
	if err != nil {
		return err
	}

	in.list = list
	in.exact = make(map[string]string, len(list))
	in.upper = make(map[string]string, len(list))
	for _, ins := range list {
		if _, ok := in.exact[ins.symbol]; !ok {
			in.exact[ins.symbol] = ins.key
		}
		if _, ok := in.upper[ins.upper]; !ok {
			in.upper[ins.upper] = ins.key
		}
	}
	in.loaded.Store(true)
	slog.Info("loaded upstox instruments", "count", len(list))
	return nil
}

// parseInstruments reads the gzip CSV master and keeps equity rows.
func parseInstruments(r io.Reader) ([]instrument, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open instruments gzip: %w", err)
	}
	defer func() { _ = gz.Close() }()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read instruments header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	symIdx, okSym := col["tradingsymbol"]
	keyIdx, okKey := col["instrument_key"]
	typeIdx, okType := col["instrument_type"]
	if !okSym || !okKey || !okType {
		return nil, fmt.Errorf("instruments header missing columns: %v", header)
	}
	width := max(symIdx, keyIdx, typeIdx) + 1

	var list []instrument
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read instruments: %w", err)
		}
		if len(rec) < width {
			continue
		}
		switch rec[typeIdx] {
		case "EQUITY", "EQ":
		default:
			continue
		}
		sym := rec[symIdx]
		up := strings.ToUpper(sym)
		list = append(list, instrument{
			symbol:   sym,
			upper:    up,
			squashed: squash(up),
			key:      rec[keyIdx],
		})
	}
	return list, nil
}

func squash(s string) string {
	return strings.NewReplacer("&", "", "-", "", " ", "").Replace(s)
}

// Resolve returns the instrument key for symbol, trying an exact match, then
// a case-insensitive match, then a prefix match ignoring punctuation.
func (in *Instruments) Resolve(ctx context.Context, symbol string) (string, error) {
	if err := in.Load(ctx); err != nil {
		return "", err
	}

	if key, ok := in.exact[symbol]; ok {
		return key, nil
	}
	in.aliasMu.RLock()
	key, ok := in.aliases[symbol]
	in.aliasMu.RUnlock()
	if ok {
		return key, nil
	}

	up := strings.ToUpper(symbol)
	if key, ok := in.upper[up]; ok {
		in.remember(symbol, key)
		return key, nil
	}

	clean := squash(up)
	if clean != "" {
		for _, ins := range in.list {
			if strings.HasPrefix(ins.squashed, clean) {
				slog.Info("upstox: fuzzy-matched symbol", "symbol", symbol, "matched", ins.symbol)
				in.remember(symbol, ins.key)
				return ins.key, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", symbol, market.ErrNotFound)
}

func (in *Instruments) remember(symbol, key string) {
	in.aliasMu.Lock()
	in.aliases[symbol] = key
	in.aliasMu.Unlock()
}

// Len returns the number of loaded equity instruments.
func (in *Instruments) Len() int {
	if !in.loaded.Load() {
		return 0
	}
	return len(in.list)
}
