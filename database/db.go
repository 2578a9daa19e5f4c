package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"

	"trendmomentum/position"
	"trendmomentum/shared"
)

const (
	// SQL statements.
	createPositionTableSQL = "CREATE TABLE IF NOT EXISTS position (id TEXT PRIMARY KEY, market TEXT, direction TEXT, size INTEGER, entryprice REAL, entryreasons TEXT, exitprice REAL, exitreason TEXT, status TEXT, pnlpoints REAL, retrycount INTEGER, createdon INTEGER, openedon INTEGER, closedon INTEGER)"
	createMetadataTableSQL = "CREATE TABLE IF NOT EXISTS metadata (id TEXT PRIMARY KEY, total INTEGER, wins INTEGER, winpoints REAL, losses INTEGER, losspoints REAL, createdon INTEGER)"
	persistPositionSQL     = "INSERT INTO position(id, market, direction, size, entryprice, entryreasons, exitprice, exitreason, status, pnlpoints, retrycount, createdon, openedon, closedon) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
	findMetadataSQL        = "SELECT * FROM metadata WHERE id = ?"
	updateMetadataSQL      = "UPDATE metadata SET total = total + 1, wins = wins + ?, winpoints = winpoints + ?, losses = losses + ?, losspoints = losspoints + ? WHERE id = ?"
	persistMetadataSQL     = "INSERT INTO metadata(id, total, wins, winpoints, losses, losspoints, createdon) VALUES(?,?,?,?,?,?,?)"
)

// PositionStorer defines the requirements for storing positions.
type PositionStorer interface {
	// PersistClosedPosition stores the provided terminal position.
	PersistClosedPosition(ctx context.Context, position *position.Position) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the PositionStorer interface.
var _ PositionStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	_, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createPositionTableSQL},
		{SQL: createMetadataTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	return nil
}

// generateMetadataID generates deterministic ids for metadata using the
// current month, week and market.
func generateMetadataID(currentTime time.Time, market string) string {
	month := currentTime.Month().String()
	week := currentTime.Day() / 7

	id := fmt.Sprintf("%s-Week-%d-%s", month, week, market)
	return id
}

// updateMetadata rolls the provided position into the weekly win/loss
// metadata for its market.
func (db *Database) updateMetadata(ctx context.Context, pos *position.Position) error {
	var win, loss int
	var winPoints, lossPoints float64

	switch {
	case pos.Status == position.Rejected:
		// Rejected positions never traded, they carry no win/loss weight.
		return nil
	case pos.Status == position.Closed && pos.PNLPoints > 0:
		win++
		winPoints = pos.PNLPoints
	case pos.Status == position.Closed && pos.PNLPoints < 0:
		loss++
		lossPoints = pos.PNLPoints
	case pos.Status == position.Closed:
		// Breakeven, counts toward the total only.
	default:
		db.cfg.Logger.Error().Msgf("unexpected position state for metadata calculations: %s", spew.Sdump(pos))
		return nil
	}

	now, _, err := shared.NewYorkTime()
	if err != nil {
		return err
	}

	id := generateMetadataID(now, pos.Market)
	resp, err := db.client.QuerySingle(ctx, findMetadataSQL, id)
	if err != nil {
		return err
	}

	exists := len(resp.GetQueryResultsAssoc()) > 0
	switch {
	case exists:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              updateMetadataSQL,
				PositionalParams: []any{win, winPoints, loss, lossPoints, id},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("updating metadata %s: %d -> %s", id, idx, errStr)
		}
	default:
		resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
			{
				SQL:              persistMetadataSQL,
				PositionalParams: []any{id, 1, win, winPoints, loss, lossPoints, now.Unix()},
			},
		}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
		if err != nil {
			return err
		}
		has, idx, errStr := resp.HasError()
		if has {
			return fmt.Errorf("persisting metadata %s: %d -> %s", id, idx, errStr)
		}
	}

	return nil
}

// PersistClosedPosition stores the provided terminal position.
func (db *Database) PersistClosedPosition(ctx context.Context, pos *position.Position) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistPositionSQL,
			PositionalParams: []any{pos.ID, pos.Market, pos.Direction.String(), pos.Size,
				pos.EntryPrice, pos.EntryReasons, pos.ExitPrice, pos.ExitReason.String(),
				pos.Status.String(), pos.PNLPoints, pos.RetryCount, pos.CreatedOn.Unix(),
				pos.OpenedAt.Unix(), pos.ClosedAt.Unix()},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}
	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("persisting position %s: %d -> %s", pos.ID, idx, errStr)
	}

	return db.updateMetadata(ctx, pos)
}
