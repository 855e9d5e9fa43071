package resolve

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aroundme-app/aroundme/pkg/nominatim"
)

// Cache is a TTL-bounded store of geocoder responses, keyed by normalized
// query. Geocoding the same candidate twice within the TTL hits the cache
// instead of the provider; a cache failure is never fatal to a lookup.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key        TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_created ON geocode_cache (created_at);
`

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open database")
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: create schema")
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached payload for the query, or false when absent or
// expired. Expired rows are deleted on read.
func (c *Cache) Get(query string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	key := cacheKey(query)

	var payload []byte
	var createdAt int64
	err := c.db.QueryRow(
		`SELECT payload, created_at FROM geocode_cache WHERE key = ?`, key,
	).Scan(&payload, &createdAt)
	if err != nil {
		if err != sql.ErrNoRows {
			zap.L().Warn("geocode cache read failed", zap.Error(err))
		}
		return nil, false
	}

	if time.Since(time.Unix(createdAt, 0)) > c.ttl {
		if _, err := c.db.Exec(`DELETE FROM geocode_cache WHERE key = ?`, key); err != nil {
			zap.L().Warn("geocode cache eviction failed", zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// Put stores the payload for the query, replacing any existing entry.
func (c *Cache) Put(query string, payload []byte) {
	if c == nil {
		return
	}
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO geocode_cache (key, query, payload, created_at) VALUES (?, ?, ?, ?)`,
		cacheKey(query), query, payload, time.Now().Unix(),
	)
	if err != nil {
		zap.L().Warn("geocode cache write failed", zap.Error(err))
	}
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

func encodePlaces(places []nominatim.Place) ([]byte, error) {
	return json.Marshal(places)
}

func decodePlaces(payload []byte) ([]nominatim.Place, error) {
	var places []nominatim.Place
	if err := json.Unmarshal(payload, &places); err != nil {
		return nil, eris.Wrap(err, "cache: decode places")
	}
	return places, nil
}
