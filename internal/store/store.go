// Package store provides SQLite-backed persistence for planboard.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/planboard/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store errors.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrPlanNotFound = errors.New("plan not found")
	ErrNotAPlan     = errors.New("record is not a plan")
	// ErrNoChange is returned by an UpdateTask mutation to leave the row untouched.
	ErrNoChange = errors.New("no change")
)

// Store provides access to the planboard SQLite database.
type Store struct {
	db *sql.DB
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		client_id TEXT NOT NULL DEFAULT '',
		plan_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		progress_mode TEXT NOT NULL DEFAULT 'AUTO',
		start_date DATETIME,
		end_date DATETIME,
		progress_target REAL,
		progress_achieved REAL,
		progress REAL,
		show_quantity_to_client INTEGER,
		show_credits_to_client INTEGER,
		show_progress_details INTEGER,
		quantity INTEGER,
		credit_cost REAL,
		credits_used REAL,
		offer_price REAL,
		original_price REAL,
		internal_notes TEXT NOT NULL DEFAULT '',
		is_listed_in_plans INTEGER NOT NULL DEFAULT 0,
		closed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		name TEXT NOT NULL,
		percentage REAL NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		reached_at DATETIME,
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_client_id ON tasks(client_id);
	CREATE INDEX IF NOT EXISTS idx_milestones_task_id ON milestones(task_id);
	CREATE INDEX IF NOT EXISTS idx_pdr_task_id ON pdr(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const taskColumns = `id, title, description, client_id, plan_id, status, progress_mode,
	start_date, end_date, progress_target, progress_achieved, progress,
	show_quantity_to_client, show_credits_to_client, show_progress_details,
	quantity, credit_cost, credits_used, offer_price, original_price,
	internal_notes, is_listed_in_plans, closed_at, created_at, updated_at`

// --- Task Operations ---

// CreateTask inserts a task created directly by an admin. It starts PENDING
// with quantity and credits visible to the client.
func (s *Store) CreateTask(ctx context.Context, in models.NewTask) (*models.Task, error) {
	mode := in.ProgressMode
	if mode == "" {
		mode = models.ProgressModeAuto
	}
	now := time.Now().UTC()
	task := &models.Task{
		ID:                   uuid.New().String(),
		Title:                in.Title,
		Description:          in.Description,
		ClientID:             in.ClientID,
		Status:               models.TaskStatusPending,
		ProgressMode:         mode,
		StartDate:            utcPtr(in.StartDate),
		EndDate:              utcPtr(in.EndDate),
		ProgressTarget:       in.ProgressTarget,
		ProgressAchieved:     in.ProgressAchieved,
		Milestones:           withMilestoneIDs(in.Milestones, nil),
		ShowQuantityToClient: models.Bool(true),
		ShowCreditsToClient:  models.Bool(true),
		Quantity:             in.Quantity,
		CreditCost:           in.CreditCost,
		OfferPrice:           in.OfferPrice,
		OriginalPrice:        in.OriginalPrice,
		InternalNotes:        in.InternalNotes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	for i := range task.Milestones {
		task.Milestones[i].ReachedAt = nil
	}

	if err := s.insert(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CreatePlan inserts a marketplace plan listing.
func (s *Store) CreatePlan(ctx context.Context, in models.NewPlan) (*models.Task, error) {
	mode := in.ProgressMode
	if mode == "" {
		mode = models.ProgressModeAuto
	}
	now := time.Now().UTC()
	plan := &models.Task{
		ID:              uuid.New().String(),
		Title:           in.Title,
		Description:     in.Description,
		ProgressMode:    mode,
		ProgressTarget:  in.ProgressTarget,
		Milestones:      withMilestoneIDs(in.Milestones, nil),
		Quantity:        in.Quantity,
		CreditCost:      in.CreditCost,
		OfferPrice:      in.OfferPrice,
		OriginalPrice:   in.OriginalPrice,
		IsListedInPlans: true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range plan.Milestones {
		plan.Milestones[i].ReachedAt = nil
	}

	if err := s.insert(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// PurchasePlan creates a PENDING_APPROVAL task for a client from a plan.
// The plan's milestones are copied as an unreached timeline.
func (s *Store) PurchasePlan(ctx context.Context, planID, clientID string) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	plan, err := getTask(ctx, tx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if !plan.IsListedInPlans {
		return nil, ErrNotAPlan
	}

	now := time.Now().UTC()
	task := plan.Clone()
	task.ID = uuid.New().String()
	task.ClientID = clientID
	task.PlanID = plan.ID
	task.Status = models.TaskStatusPendingApproval
	task.IsListedInPlans = false
	task.ShowQuantityToClient = models.Bool(true)
	task.ShowCreditsToClient = models.Bool(true)
	task.ShowProgressDetails = nil
	task.ClosedAt = nil
	task.CreatedAt = now
	task.UpdatedAt = now
	for i := range task.Milestones {
		task.Milestones[i].ID = uuid.New().String()
		task.Milestones[i].ReachedAt = nil
	}

	if err := insertTask(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return task, nil
}

func (s *Store) insert(ctx context.Context, task *models.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTask(ctx, tx, task); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertTask(ctx context.Context, q executor, t *models.Task) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskArgs(t)...,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return replaceMilestones(ctx, q, t.ID, t.Milestones)
}

// GetTask retrieves a task or plan by ID. It returns nil when no row exists.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q executor, id string) (*models.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}

	ms, err := loadMilestones(ctx, q, []string{task.ID})
	if err != nil {
		return nil, err
	}
	task.Milestones = ms[task.ID]
	return task, nil
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	Status       models.TaskStatus
	ClientID     string
	ProgressMode models.ProgressMode
}

// ListTasks returns tasks (never plans), newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE is_listed_in_plans = 0`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, f.ClientID)
	}
	if f.ProgressMode != "" {
		query += ` AND progress_mode = ?`
		args = append(args, f.ProgressMode)
	}
	query += ` ORDER BY created_at DESC`

	return s.list(ctx, query, args...)
}

// ListPlans returns all plan listings, newest first.
func (s *Store) ListPlans(ctx context.Context) ([]models.Task, error) {
	return s.list(ctx, `SELECT `+taskColumns+` FROM tasks WHERE is_listed_in_plans = 1 ORDER BY created_at DESC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(tasks) == 0 {
		return tasks, nil
	}
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	ms, err := loadMilestones(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Milestones = ms[tasks[i].ID]
	}
	return tasks, nil
}

// UpdateTask loads a task inside a transaction, hands a copy to mutate and
// persists the result. Nothing is written when mutate returns an error; a
// mutation returning ErrNoChange yields the unchanged task and a nil error.
// The status, every general field and the milestone set commit together.
func (s *Store) UpdateTask(ctx context.Context, id string, mutate func(t *models.Task) error) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrTaskNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return current, nil
		}
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	next.Milestones = withMilestoneIDs(next.Milestones, current.Milestones)

	args := taskArgs(next)
	// Move id from the head of the column list to the WHERE clause.
	args = append(args[1:], next.ID)
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, client_id = ?, plan_id = ?, status = ?, progress_mode = ?,
			start_date = ?, end_date = ?, progress_target = ?, progress_achieved = ?, progress = ?,
			show_quantity_to_client = ?, show_credits_to_client = ?, show_progress_details = ?,
			quantity = ?, credit_cost = ?, credits_used = ?, offer_price = ?, original_price = ?,
			internal_notes = ?, is_listed_in_plans = ?, closed_at = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := replaceMilestones(ctx, tx, next.ID, next.Milestones); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

// StampMilestones re-reads a task inside a transaction and sets reached_at
// on the milestones pick selects from that fresh copy, skipping any already
// stamped. pick sees the committed row, so decisions made on an older read
// of the task cannot stamp milestones its current progress has not reached.
// It returns how many rows were stamped.
func (s *Store) StampMilestones(ctx context.Context, taskID string, pick func(t *models.Task) []string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	task, err := getTask(ctx, tx, taskID)
	if err != nil {
		return 0, err
	}
	if task == nil {
		return 0, ErrTaskNotFound
	}
	ids := pick(task)
	if len(ids) == 0 {
		return 0, nil
	}

	stamped := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx,
			`UPDATE milestones SET reached_at = ? WHERE task_id = ? AND id = ? AND reached_at IS NULL`,
			at.UTC(), taskID, id,
		)
		if err != nil {
			return 0, fmt.Errorf("stamp milestone: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("check rows affected: %w", err)
		}
		stamped += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return stamped, nil
}

// --- Milestone helpers ---

func replaceMilestones(ctx context.Context, q executor, taskID string, ms []models.Milestone) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM milestones WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete milestones: %w", err)
	}
	for i, m := range ms {
		_, err := q.ExecContext(ctx,
			`INSERT INTO milestones (id, task_id, name, percentage, color, position, reached_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, taskID, m.Name, m.Percentage, m.Color, i, nullTime(m.ReachedAt),
		)
		if err != nil {
			return fmt.Errorf("insert milestone: %w", err)
		}
	}
	return nil
}

func loadMilestones(ctx context.Context, q executor, taskIDs []string) (map[string][]models.Milestone, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(taskIDs)), ", ")
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, task_id, name, percentage, color, reached_at FROM milestones
		 WHERE task_id IN (`+placeholders+`) ORDER BY task_id, position`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query milestones: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Milestone, len(taskIDs))
	for rows.Next() {
		var m models.Milestone
		var taskID string
		var reachedAt sql.NullTime
		if err := rows.Scan(&m.ID, &taskID, &m.Name, &m.Percentage, &m.Color, &reachedAt); err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		if reachedAt.Valid {
			t := reachedAt.Time.UTC()
			m.ReachedAt = &t
		}
		out[taskID] = append(out[taskID], m)
	}
	return out, rows.Err()
}

// withMilestoneIDs returns a copy of ms in which every milestone carries an
// id. Ids are global keys: one is kept only when it belongs to owned and has
// not already been used earlier in ms; any other id is replaced.
func withMilestoneIDs(ms, owned []models.Milestone) []models.Milestone {
	keep := make(map[string]bool, len(owned))
	for _, m := range owned {
		keep[m.ID] = true
	}
	out := models.CloneMilestones(ms)
	for i := range out {
		if out[i].ID == "" || !keep[out[i].ID] {
			out[i].ID = uuid.New().String()
			continue
		}
		keep[out[i].ID] = false
	}
	return out
}

// --- Row mapping ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t                                             models.Task
		startDate, endDate, closedAt                  sql.NullTime
		target, achieved, progress                    sql.NullFloat64
		showQuantity, showCredits, showDetails        sql.NullBool
		quantity                                      sql.NullInt64
		creditCost, creditsUsed, offerPrice, original sql.NullFloat64
		isPlan                                        bool
	)

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.ClientID, &t.PlanID, &t.Status, &t.ProgressMode,
		&startDate, &endDate, &target, &achieved, &progress,
		&showQuantity, &showCredits, &showDetails,
		&quantity, &creditCost, &creditsUsed, &offerPrice, &original,
		&t.InternalNotes, &isPlan, &closedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.StartDate = timePtr(startDate)
	t.EndDate = timePtr(endDate)
	t.ClosedAt = timePtr(closedAt)
	t.ProgressTarget = floatPtr(target)
	t.ProgressAchieved = floatPtr(achieved)
	t.Progress = floatPtr(progress)
	t.ShowQuantityToClient = boolPtr(showQuantity)
	t.ShowCreditsToClient = boolPtr(showCredits)
	t.ShowProgressDetails = boolPtr(showDetails)
	if quantity.Valid {
		t.Quantity = models.Int(int(quantity.Int64))
	}
	t.CreditCost = floatPtr(creditCost)
	t.CreditsUsed = floatPtr(creditsUsed)
	t.OfferPrice = floatPtr(offerPrice)
	t.OriginalPrice = floatPtr(original)
	t.IsListedInPlans = isPlan
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func taskArgs(t *models.Task) []any {
	var quantity any
	if t.Quantity != nil {
		quantity = *t.Quantity
	}
	return []any{
		t.ID, t.Title, t.Description, t.ClientID, t.PlanID, string(t.Status), string(t.ProgressMode),
		nullTime(t.StartDate), nullTime(t.EndDate),
		nullFloat(t.ProgressTarget), nullFloat(t.ProgressAchieved), nullFloat(t.Progress),
		nullBool(t.ShowQuantityToClient), nullBool(t.ShowCreditsToClient), nullBool(t.ShowProgressDetails),
		quantity, nullFloat(t.CreditCost), nullFloat(t.CreditsUsed), nullFloat(t.OfferPrice), nullFloat(t.OriginalPrice),
		t.InternalNotes, t.IsListedInPlans, nullTime(t.ClosedAt), t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return models.Float(f.Float64)
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	return models.Bool(b.Bool)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
