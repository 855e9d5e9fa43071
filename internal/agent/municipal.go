package agent

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aroundme-app/aroundme/internal/llm"
	"github.com/aroundme-app/aroundme/internal/model"
	"github.com/aroundme-app/aroundme/internal/resolve"
)

// Portal is one open-data endpoint to try for municipal service requests.
type Portal struct {
	Kind string // open311 | socrata | ckan
	URL  string
}

const (
	PortalOpen311 = "open311"
	PortalSocrata = "socrata"
	PortalCKAN    = "ckan"
)

// MunicipalAgent pulls recent service requests (311-style) from a city's
// open-data portal. Cities publish these behind different conventions, so
// discovery tries Open311 endpoints first, then Socrata, then CKAN.
type MunicipalAgent struct {
	http          *http.Client
	llm           llm.Service
	resolver      *resolve.Resolver
	portals       []Portal // overrides convention-based discovery when set
	maxRecords    int
	maxConcurrent int
}

// MunicipalOption configures the agent.
type MunicipalOption func(*MunicipalAgent)

// WithPortals pins the portal list instead of deriving it from the city name.
func WithPortals(portals []Portal) MunicipalOption {
	return func(a *MunicipalAgent) {
		a.portals = portals
	}
}

// WithMunicipalHTTPClient overrides the portal-fetching HTTP client.
func WithMunicipalHTTPClient(hc *http.Client) MunicipalOption {
	return func(a *MunicipalAgent) {
		a.http = hc
	}
}

// NewMunicipalAgent wires the municipal-services agent.
func NewMunicipalAgent(llmSvc llm.Service, resolver *resolve.Resolver, maxRecords, maxConcurrent int, opts ...MunicipalOption) *MunicipalAgent {
	if maxRecords <= 0 {
		maxRecords = 25
	}
	a := &MunicipalAgent{
		http:          &http.Client{Timeout: 20 * time.Second},
		llm:           llmSvc,
		resolver:      resolver,
		maxRecords:    maxRecords,
		maxConcurrent: maxConcurrent,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *MunicipalAgent) Name() string { return "municipal" }

func (a *MunicipalAgent) Discover(ctx context.Context, loc Location) ([]model.POI, error) {
	log := zap.L().With(zap.String("agent", a.Name()), zap.String("city", loc.City))

	records := a.fetchRecords(ctx, loc, log)
	if len(records) == 0 {
		log.Info("no municipal records found")
		return nil, nil
	}

	// Most recent first, then cap.
	sort.SliceStable(records, func(i, j int) bool {
		switch {
		case records[i].Created == nil:
			return false
		case records[j].Created == nil:
			return true
		default:
			return records[i].Created.After(*records[j].Created)
		}
	})
	if len(records) > a.maxRecords {
		records = records[:a.maxRecords]
	}

	candidates := a.buildCandidates(ctx, records, loc, log)
	pois, err := resolveAll(ctx, a.resolver, candidates, a.maxConcurrent)
	if err != nil {
		return nil, err
	}

	for i := range pois {
		if pois[i].Summary == "" {
			pois[i].Summary = "Reported municipal service request: " + pois[i].Name
		}
	}

	log.Info("municipal discovery finished",
		zap.Int("records", len(records)),
		zap.Int("resolved", len(pois)),
	)
	return pois, nil
}

// serviceRecord is one parsed service-request row, whatever portal or format
// it came from.
type serviceRecord struct {
	Name        string
	Description string
	Created     *time.Time
	Lat         float64
	Lng         float64
	HasCoord    bool
}

// fetchRecords tries each portal in order and returns the first non-empty
// parse. A portal that fails or yields nothing is skipped.
func (a *MunicipalAgent) fetchRecords(ctx context.Context, loc Location, log *zap.Logger) []serviceRecord {
	portals := a.portals
	if len(portals) == 0 {
		portals = conventionPortals(loc.City)
	}

	for _, portal := range portals {
		if ctx.Err() != nil {
			break
		}
		records, err := a.fetchPortal(ctx, portal)
		if err != nil {
			log.Debug("portal unavailable",
				zap.String("kind", portal.Kind),
				zap.String("url", portal.URL),
				zap.Error(err),
			)
			continue
		}
		if len(records) == 0 {
			continue
		}
		log.Info("municipal portal found",
			zap.String("kind", portal.Kind),
			zap.Int("records", len(records)),
		)
		return records
	}
	return nil
}

// conventionPortals builds the endpoints a city is likely to publish under,
// in the order they are tried.
func conventionPortals(city string) []Portal {
	slug := strings.ToLower(strings.Join(strings.Fields(city), ""))
	return []Portal{
		{Kind: PortalOpen311, URL: fmt.Sprintf("https://data.%s.gov/open311/v2/requests.json", slug)},
		{Kind: PortalOpen311, URL: fmt.Sprintf("https://%s.gov/open311/v2/requests.json", slug)},
		{Kind: PortalSocrata, URL: fmt.Sprintf("https://data.%s.gov/resource/service-requests.json?$limit=100&$order=created_date%%20DESC", slug)},
		{Kind: PortalCKAN, URL: fmt.Sprintf("https://donnees.%s.ca/api/3/action/package_search?q=requetes+311&rows=1", slug)},
		{Kind: PortalCKAN, URL: fmt.Sprintf("https://data.%s.ca/api/3/action/package_search?q=311+service+requests&rows=1", slug)},
	}
}

func (a *MunicipalAgent) fetchPortal(ctx context.Context, portal Portal) ([]serviceRecord, error) {
	switch portal.Kind {
	case PortalCKAN:
		return a.fetchCKAN(ctx, portal.URL)
	default:
		// Open311 and Socrata both answer with a JSON record array.
		data, _, err := a.fetch(ctx, portal.URL)
		if err != nil {
			return nil, err
		}
		return parseJSONRecords(data)
	}
}

type ckanResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Results []struct {
			Resources []struct {
				URL    string `json:"url"`
				Format string `json:"format"`
			} `json:"resources"`
		} `json:"results"`
	} `json:"result"`
}

// fetchCKAN resolves a CKAN package search to its first usable resource and
// parses whatever format that resource is published in.
func (a *MunicipalAgent) fetchCKAN(ctx context.Context, searchURL string) ([]serviceRecord, error) {
	data, _, err := a.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var resp ckanResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "municipal: decode ckan search")
	}
	if !resp.Success || len(resp.Result.Results) == 0 {
		return nil, eris.New("municipal: ckan search empty")
	}

	for _, res := range resp.Result.Results[0].Resources {
		format := strings.ToUpper(res.Format)
		if res.URL == "" || (format != "CSV" && format != "JSON" && format != "ZIP") {
			continue
		}
		payload, contentType, err := a.fetch(ctx, res.URL)
		if err != nil {
			continue
		}
		records, err := parsePayload(payload, format, contentType)
		if err == nil && len(records) > 0 {
			return records, nil
		}
	}
	return nil, eris.New("municipal: no parseable ckan resource")
}

func (a *MunicipalAgent) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "municipal: create request")
	}
	req.Header.Set("Accept", "application/json, text/csv, */*")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", eris.Wrap(err, "municipal: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", eris.Errorf("municipal: unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, "", eris.Wrap(err, "municipal: read response body")
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func parsePayload(data []byte, formatHint, contentType string) ([]serviceRecord, error) {
	switch {
	case formatHint == "ZIP" || strings.Contains(contentType, "zip") || bytes.HasPrefix(data, []byte("PK")):
		return parseZIPRecords(data)
	case formatHint == "CSV" || strings.Contains(contentType, "csv"):
		return parseCSVRecords(data)
	default:
		return parseJSONRecords(data)
	}
}

func (a *MunicipalAgent) buildCandidates(ctx context.Context, records []serviceRecord, loc Location, log *zap.Logger) []model.POICandidate {
	var candidates []model.POICandidate
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		cand := model.POICandidate{
			Name:         rec.Name,
			SourceType:   model.SourceMunicipal,
			RawText:      rec.Description,
			City:         loc.City,
			Province:     loc.Province,
			Country:      loc.Country,
			CreationDate: rec.Created,
		}

		if rec.HasCoord {
			cand.Lat, cand.Lng, cand.HasCoord = rec.Lat, rec.Lng, true
		} else {
			// A record without coordinates gets one inferred from its
			// description; the boundary check downstream rejects bad guesses.
			desc := rec.Description
			if desc == "" {
				desc = rec.Name
			}
			lat, lng, ok, err := a.llm.InferCoordinates(ctx, desc, loc.City)
			if err != nil {
				log.Debug("coordinate inference failed", zap.String("name", rec.Name), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			cand.Lat, cand.Lng, cand.HasCoord = lat, lng, true
		}

		candidates = append(candidates, cand)
	}
	return candidates
}

// Column probes for the formats cities publish, English and French.
var (
	nameColumns = []string{"service_name", "complaint_type", "type", "nature", "type_requete", "acti_nom", "categorie", "category"}
	descColumns = []string{"description", "descriptif", "commentaire", "comments", "details"}
	latColumns  = []string{"lat", "latitude", "loc_lat", "lat_wgs84", "y"}
	lngColumns  = []string{"long", "lng", "lon", "longitude", "loc_long", "long_wgs84", "x"}
	dateColumns = []string{"requested_datetime", "created_date", "creation_date", "date_creation", "ddr_date_creation", "date"}
)

var recordDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseJSONRecords(data []byte) ([]serviceRecord, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrap(err, "municipal: decode json records")
	}

	var out []serviceRecord
	for _, row := range rows {
		lower := make(map[string]any, len(row))
		for k, v := range row {
			lower[strings.ToLower(k)] = v
		}

		rec := serviceRecord{
			Name:        probeString(lower, nameColumns),
			Description: probeString(lower, descColumns),
		}
		if rec.Name == "" {
			continue
		}
		if lat, latOK := probeFloat(lower, latColumns); latOK {
			if lng, lngOK := probeFloat(lower, lngColumns); lngOK {
				rec.Lat, rec.Lng, rec.HasCoord = lat, lng, true
			}
		}
		if ts := parseRecordDate(probeString(lower, dateColumns)); ts != nil {
			rec.Created = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseCSVRecords(data []byte) ([]serviceRecord, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "municipal: read csv header")
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	nameIdx := probeColumn(colIdx, nameColumns)
	descIdx := probeColumn(colIdx, descColumns)
	latIdx := probeColumn(colIdx, latColumns)
	lngIdx := probeColumn(colIdx, lngColumns)
	dateIdx := probeColumn(colIdx, dateColumns)
	if nameIdx < 0 {
		return nil, eris.New("municipal: csv has no recognizable name column")
	}

	var out []serviceRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows are skipped, not fatal.
			continue
		}

		rec := serviceRecord{
			Name:        cell(row, nameIdx),
			Description: cell(row, descIdx),
		}
		if rec.Name == "" {
			continue
		}
		if latIdx >= 0 && lngIdx >= 0 {
			lat, latErr := strconv.ParseFloat(cell(row, latIdx), 64)
			lng, lngErr := strconv.ParseFloat(cell(row, lngIdx), 64)
			if latErr == nil && lngErr == nil && (lat != 0 || lng != 0) {
				rec.Lat, rec.Lng, rec.HasCoord = lat, lng, true
			}
		}
		if ts := parseRecordDate(cell(row, dateIdx)); ts != nil {
			rec.Created = ts
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseZIPRecords unpacks the first CSV member of a ZIP payload.
func parseZIPRecords(data []byte) ([]serviceRecord, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "municipal: open zip")
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rc, 16<<20))
		rc.Close()
		if err != nil {
			continue
		}
		return parseCSVRecords(content)
	}
	return nil, eris.New("municipal: zip contains no csv")
}

func probeString(row map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func probeFloat(row map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := row[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			if n != 0 {
				return n, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && f != 0 {
				return f, true
			}
		}
	}
	return 0, false
}

func probeColumn(colIdx map[string]int, keys []string) int {
	for _, k := range keys {
		if i, ok := colIdx[k]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseRecordDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range recordDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
