// Package persistence provides SQLite-based storage for run records:
// session results, tick statistics, and risk events, keyed by run ID.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/bazaar/internal/trade"
)

// Store wraps a SQLite connection for run persistence.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	st := &Store{conn: conn}
	if err := st.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return st, nil
}

// Close closes the database connection.
func (st *Store) Close() error {
	return st.conn.Close()
}

func (st *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		mode TEXT NOT NULL,
		scenario_mode TEXT NOT NULL,
		buyer_policy TEXT NOT NULL,
		seller_policy TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		time_step INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		deal_made INTEGER NOT NULL,
		deal_price REAL,
		termination TEXT NOT NULL,
		rounds_taken INTEGER NOT NULL,
		buyer_value REAL NOT NULL,
		seller_cost REAL NOT NULL,
		buyer_surplus REAL NOT NULL,
		seller_surplus REAL NOT NULL,
		history_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		num_sessions INTEGER NOT NULL,
		deals_made INTEGER NOT NULL,
		fail_rate REAL NOT NULL,
		mean_price REAL NOT NULL,
		price_std REAL NOT NULL,
		liquidity REAL NOT NULL,
		buyer_surplus_mean REAL NOT NULL,
		seller_surplus_mean REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS risk_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		time_step INTEGER NOT NULL,
		round INTEGER NOT NULL,
		role TEXT NOT NULL,
		violation_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		attempted_action TEXT NOT NULL,
		attempted_price REAL
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id, time_step);
	CREATE INDEX IF NOT EXISTS idx_tick_stats_run ON tick_stats(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_risk_events_run ON risk_events(run_id, time_step);
	`
	_, err := st.conn.Exec(schema)
	return err
}

// RunRecord is the metadata row for one simulation run.
type RunRecord struct {
	ID           string `db:"id" json:"run_id"`
	Seed         int64  `db:"seed" json:"seed"`
	Steps        int    `db:"steps" json:"steps"`
	Mode         string `db:"mode" json:"mode"`
	ScenarioMode string `db:"scenario_mode" json:"scenario_mode"`
	BuyerPolicy  string `db:"buyer_policy" json:"buyer_policy"`
	SellerPolicy string `db:"seller_policy" json:"seller_policy"`
	CreatedAt    string `db:"created_at" json:"created_at"`
}

// SaveRun inserts the run metadata row. CreatedAt defaults to now.
func (st *Store) SaveRun(run RunRecord) error {
	if run.CreatedAt == "" {
		run.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := st.conn.Exec(`INSERT INTO runs
		(id, seed, steps, mode, scenario_mode, buyer_policy, seller_policy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Seed, run.Steps, run.Mode, run.ScenarioMode,
		run.BuyerPolicy, run.SellerPolicy, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// SaveResults writes all session results for a run in one transaction,
// including each result's risk events.
func (st *Store) SaveResults(runID string, results []*trade.NegotiationResult) error {
	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO results
		(run_id, time_step, item_id, buyer_id, seller_id, deal_made, deal_price,
		 termination, rounds_taken, buyer_value, seller_cost, buyer_surplus,
		 seller_surplus, history_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	riskStmt, err := tx.Preparex(`INSERT INTO risk_events
		(run_id, time_step, round, role, violation_type, reason, attempted_action, attempted_price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer riskStmt.Close()

	for _, r := range results {
		historyJSON, _ := json.Marshal(r.History)

		dealMade := 0
		if r.DealMade {
			dealMade = 1
		}

		_, err := stmt.Exec(
			runID, r.TimeStep, r.Item.ID, r.BuyerID, r.SellerID,
			dealMade, r.DealPrice, string(r.TerminationReason), r.RoundsTaken,
			r.BuyerValue, r.SellerCost, r.BuyerSurplus, r.SellerSurplus,
			string(historyJSON),
		)
		if err != nil {
			return fmt.Errorf("insert result %s/%s: %w", r.BuyerID, r.SellerID, err)
		}

		for _, e := range r.RiskEvents {
			_, err := riskStmt.Exec(
				runID, e.TimeStep, e.Round, string(e.Role),
				string(e.ViolationType), e.Reason,
				string(e.AttemptedAction), e.AttemptedPrice,
			)
			if err != nil {
				return fmt.Errorf("insert risk event: %w", err)
			}
		}
	}

	return tx.Commit()
}

// SaveTickStats writes per-tick aggregates for a run.
func (st *Store) SaveTickStats(runID string, stats []trade.MarketTickStats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := st.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range stats {
		_, err := tx.Exec(`INSERT INTO tick_stats
			(run_id, tick, num_sessions, deals_made, fail_rate, mean_price,
			 price_std, liquidity, buyer_surplus_mean, seller_surplus_mean)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, s.Tick, s.NumSessions, s.DealsMade, s.FailRate,
			s.MeanPrice, s.PriceStd, s.Liquidity,
			s.BuyerSurplusMean, s.SellerSurplusMean,
		)
		if err != nil {
			return fmt.Errorf("insert tick stats %d: %w", s.Tick, err)
		}
	}

	return tx.Commit()
}

// SaveRunState performs a full save of one finished run.
func (st *Store) SaveRunState(run RunRecord, results []*trade.NegotiationResult, stats []trade.MarketTickStats) error {
	slog.Info("saving run", "run_id", run.ID, "results", len(results), "ticks", len(stats))

	if err := st.SaveRun(run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := st.SaveResults(run.ID, results); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if err := st.SaveTickStats(run.ID, stats); err != nil {
		return fmt.Errorf("save tick stats: %w", err)
	}

	slog.Info("run saved", "run_id", run.ID)
	return nil
}

// Runs returns run metadata rows, newest first.
func (st *Store) Runs(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := st.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY created_at DESC LIMIT ?", limit)
	return runs, err
}

// ResultRow is the flat stored form of one session result.
type ResultRow struct {
	RunID         string   `db:"run_id" json:"run_id"`
	TimeStep      int      `db:"time_step" json:"time_step"`
	ItemID        string   `db:"item_id" json:"item_id"`
	BuyerID       string   `db:"buyer_id" json:"buyer_id"`
	SellerID      string   `db:"seller_id" json:"seller_id"`
	DealMade      bool     `db:"deal_made" json:"deal_made"`
	DealPrice     *float64 `db:"deal_price" json:"deal_price"`
	Termination   string   `db:"termination" json:"termination"`
	RoundsTaken   int      `db:"rounds_taken" json:"rounds_taken"`
	BuyerValue    float64  `db:"buyer_value" json:"buyer_value"`
	SellerCost    float64  `db:"seller_cost" json:"seller_cost"`
	BuyerSurplus  float64  `db:"buyer_surplus" json:"buyer_surplus"`
	SellerSurplus float64  `db:"seller_surplus" json:"seller_surplus"`
}

// ResultsForRun returns stored results for a run in execution order.
func (st *Store) ResultsForRun(runID string, limit int) ([]ResultRow, error) {
	var rows []ResultRow
	err := st.conn.Select(&rows, `SELECT
		run_id, time_step, item_id, buyer_id, seller_id, deal_made, deal_price,
		termination, rounds_taken, buyer_value, seller_cost, buyer_surplus, seller_surplus
		FROM results WHERE run_id = ? ORDER BY id LIMIT ?`,
		runID, limit)
	return rows, err
}

type tickRow struct {
	Tick              int     `db:"tick"`
	NumSessions       int     `db:"num_sessions"`
	DealsMade         int     `db:"deals_made"`
	FailRate          float64 `db:"fail_rate"`
	MeanPrice         float64 `db:"mean_price"`
	PriceStd          float64 `db:"price_std"`
	Liquidity         float64 `db:"liquidity"`
	BuyerSurplusMean  float64 `db:"buyer_surplus_mean"`
	SellerSurplusMean float64 `db:"seller_surplus_mean"`
}

// TickStatsForRun returns stored tick aggregates for a run in tick order.
func (st *Store) TickStatsForRun(runID string) ([]trade.MarketTickStats, error) {
	var rows []tickRow
	err := st.conn.Select(&rows, `SELECT
		tick, num_sessions, deals_made, fail_rate, mean_price, price_std,
		liquidity, buyer_surplus_mean, seller_surplus_mean
		FROM tick_stats WHERE run_id = ? ORDER BY tick`,
		runID)
	if err != nil {
		return nil, err
	}
	stats := make([]trade.MarketTickStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, trade.MarketTickStats{
			Tick:              r.Tick,
			NumSessions:       r.NumSessions,
			DealsMade:         r.DealsMade,
			FailRate:          r.FailRate,
			MeanPrice:         r.MeanPrice,
			PriceStd:          r.PriceStd,
			Liquidity:         r.Liquidity,
			BuyerSurplusMean:  r.BuyerSurplusMean,
			SellerSurplusMean: r.SellerSurplusMean,
		})
	}
	return stats, nil
}

// RiskEventCount returns the number of stored risk events for a run.
func (st *Store) RiskEventCount(runID string) (int, error) {
	var n int
	err := st.conn.Get(&n, "SELECT COUNT(*) FROM risk_events WHERE run_id = ?", runID)
	return n, err
}
