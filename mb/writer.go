package mb

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/eak1mov/go-rasterpyramid/webtile"
)

// Writer implements webtile.Writer and webtile.MetadataWriter for the
// MBTiles format.
type Writer struct {
	db     *sql.DB
	stmt   *sql.Stmt
	logger *slog.Logger
}

type writerConfig struct {
	Metadata map[string]string
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata map[string]string) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

// NewWriter creates a new MBTiles file and prepares it for writing tiles.
func NewWriter(filePath string, opts ...WriterOption) (*Writer, error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	var err error
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	_, err = db.Exec(`
		CREATE TABLE metadata (name TEXT, value TEXT);
		CREATE UNIQUE INDEX metadata_index ON metadata (name);
		CREATE TABLE tiles (
			zoom_level INTEGER,
			tile_column INTEGER,
			tile_row INTEGER,
			tile_data BLOB
		);
	`)
	if err != nil {
		return nil, err
	}

	stmt, err := db.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, err
	}

	w := &Writer{db, stmt, config.Logger}
	if err = w.WriteMetadata(config.Metadata); err != nil {
		stmt.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) Close() error {
	return errors.Join(w.stmt.Close(), w.db.Close())
}

// WriteMetadata stores metadata values, replacing existing ones.
func (w *Writer) WriteMetadata(metadata map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(metadata)) {
		_, err := w.db.Exec("INSERT OR REPLACE INTO metadata (name, value) VALUES (?, ?)", name, metadata[name])
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) WriteTile(tileID webtile.ID, tileData []byte) error {
	if !tileID.Valid() {
		return fmt.Errorf("%w: tile %v", webtile.ErrInvalidID, tileID)
	}
	_, err := w.stmt.Exec(tileID.Z, tileID.X, flipRow(tileID.Z, tileID.Y), tileData)
	return err
}

func (w *Writer) Finalize() error {
	w.logger.Debug("rasterpyramid: creating mbtiles index")
	_, err := w.db.Exec("CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)")
	return err
}
