package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/combiapp/combiapp/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			push_token TEXT NOT NULL DEFAULT '',
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS trip_entries (
			email TEXT NOT NULL,
			day INTEGER NOT NULL,
			leg TEXT NOT NULL,
			usar INTEGER,
			parada TEXT NOT NULL DEFAULT '',
			recurrente INTEGER NOT NULL DEFAULT 0,
			fecha TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (email, day, leg)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trip_entries_email ON trip_entries(email)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_email TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_created ON chat_messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS stops (
			leg TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			time TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (leg, position)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE migrations may already be applied
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

// --- Users directory ---

// UpsertUser creates or updates the directory entry for a rider, keeping an
// existing push token and admin flag intact.
func (s *Storage) UpsertUser(email, name string) error {
	_, err := s.db.Exec(`INSERT INTO users (email, name) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name`, email, name)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns nil without error when the rider is unknown.
func (s *Storage) GetUser(email string) (*domain.User, error) {
	row := s.db.QueryRow(`SELECT email, name, push_token, is_admin, created_at
		FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Storage) ListUsers() ([]*domain.User, error) {
	rows, err := s.db.Query(`SELECT email, name, push_token, is_admin, created_at
		FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPushToken registers the rider's push target, overwriting any previous
// one. The rider owns this entry; concurrent overwrites from two devices are
// last-writer-wins.
func (s *Storage) SetPushToken(email, token string) error {
	_, err := s.db.Exec(`INSERT INTO users (email, push_token) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET push_token = excluded.push_token`, email, token)
	if err != nil {
		return fmt.Errorf("set push token: %w", err)
	}
	return nil
}

// ClearPushToken removes a dead delivery target so future fan-outs skip it.
func (s *Storage) ClearPushToken(email string) error {
	_, err := s.db.Exec(`UPDATE users SET push_token = '' WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("clear push token: %w", err)
	}
	return nil
}

func (s *Storage) SetAdmin(email string, isAdmin bool) error {
	_, err := s.db.Exec(`UPDATE users SET is_admin = ? WHERE email = ?`, boolToInt(isAdmin), email)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(r rowScanner) (*domain.User, error) {
	var u domain.User
	var isAdmin int
	var created sql.NullTime
	if err := r.Scan(&u.Email, &u.Name, &u.PushToken, &isAdmin, &created); err != nil {
		return nil, err
	}
	u.IsAdmin = isAdmin != 0
	if created.Valid {
		u.CreatedAt = created.Time
	}
	return &u, nil
}

// --- Trip schedules ---

// GetSchedule loads one rider's weekly declaration. An unknown rider yields
// a schedule with an empty day map, not an error: absent document means "no
// entries yet".
func (s *Storage) GetSchedule(email string) (*domain.RiderSchedule, error) {
	sched := &domain.RiderSchedule{
		Email: email,
		Dias:  make(map[domain.Weekday]*domain.DaySchedule),
	}

	var name string
	err := s.db.QueryRow(`SELECT name FROM users WHERE email = ?`, email).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("get schedule user: %w", err)
	}
	sched.Nombre = name

	rows, err := s.db.Query(`SELECT day, leg, usar, parada, recurrente, fecha
		FROM trip_entries WHERE email = ? ORDER BY day, leg`, email)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	defer rows.Close()

	if err := scanEntries(rows, sched); err != nil {
		return nil, err
	}
	return sched, rows.Err()
}

// SaveSchedule replaces a rider's whole weekly declaration in one
// transaction. There is no partial merge: last writer wins.
func (s *Storage) SaveSchedule(sched *domain.RiderSchedule) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save schedule: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO users (email, name) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name`, sched.Email, sched.Nombre)
	if err != nil {
		return fmt.Errorf("save schedule user: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM trip_entries WHERE email = ?`, sched.Email); err != nil {
		return fmt.Errorf("clear trip entries: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO trip_entries
		(email, day, leg, usar, parada, recurrente, fecha) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trip entry: %w", err)
	}
	defer stmt.Close()

	for day, ds := range sched.Dias {
		for _, leg := range []domain.Leg{domain.LegIda, domain.LegVuelta} {
			e := ds.Entry(leg)
			if e == nil {
				continue
			}
			var usar interface{}
			if e.Usar != nil {
				usar = boolToInt(*e.Usar)
			}
			_, err := stmt.Exec(sched.Email, int(day), string(leg), usar,
				e.Parada, boolToInt(e.Recurrente), e.Fecha)
			if err != nil {
				return fmt.Errorf("insert trip entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save schedule: %w", err)
	}
	return nil
}

// ListSchedules returns every rider in the directory with their entries,
// ordered by email. Riders without any entry appear with an empty day map so
// the roster can count them as unanswered.
func (s *Storage) ListSchedules() ([]*domain.RiderSchedule, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}

	byEmail := make(map[string]*domain.RiderSchedule, len(users))
	var out []*domain.RiderSchedule
	for _, u := range users {
		sched := &domain.RiderSchedule{
			Email:  u.Email,
			Nombre: u.Name,
			Dias:   make(map[domain.Weekday]*domain.DaySchedule),
		}
		byEmail[u.Email] = sched
		out = append(out, sched)
	}

	rows, err := s.db.Query(`SELECT email, day, leg, usar, parada, recurrente, fecha
		FROM trip_entries ORDER BY email, day, leg`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		var day, recurrente int
		var leg, parada, fecha string
		var usar sql.NullInt64
		if err := rows.Scan(&email, &day, &leg, &usar, &parada, &recurrente, &fecha); err != nil {
			return nil, fmt.Errorf("scan trip entry: %w", err)
		}
		sched, ok := byEmail[email]
		if !ok {
			// entries without a directory row still count
			sched = &domain.RiderSchedule{
				Email: email,
				Dias:  make(map[domain.Weekday]*domain.DaySchedule),
			}
			byEmail[email] = sched
			out = append(out, sched)
		}
		addEntry(sched, domain.Weekday(day), domain.Leg(leg), usar, parada, recurrente != 0, fecha)
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows, sched *domain.RiderSchedule) error {
	for rows.Next() {
		var day, recurrente int
		var leg, parada, fecha string
		var usar sql.NullInt64
		if err := rows.Scan(&day, &leg, &usar, &parada, &recurrente, &fecha); err != nil {
			return fmt.Errorf("scan trip entry: %w", err)
		}
		addEntry(sched, domain.Weekday(day), domain.Leg(leg), usar, parada, recurrente != 0, fecha)
	}
	return nil
}

func addEntry(sched *domain.RiderSchedule, day domain.Weekday, leg domain.Leg, usar sql.NullInt64, parada string, recurrente bool, fecha string) {
	if !day.Valid() {
		return
	}
	e := &domain.LegEntry{Parada: parada, Recurrente: recurrente, Fecha: fecha}
	if usar.Valid {
		v := usar.Int64 != 0
		e.Usar = &v
	}
	ds := sched.Dias[day]
	if ds == nil {
		ds = &domain.DaySchedule{}
		sched.Dias[day] = ds
	}
	if leg == domain.LegVuelta {
		ds.Vuelta = e
	} else {
		ds.Ida = e
	}
}

// --- Chat messages ---

func (s *Storage) CreateChatMessage(m *domain.ChatMessage) error {
	res, err := s.db.Exec(`INSERT INTO chat_messages (sender_email, sender_name, text)
		VALUES (?, ?, ?)`, m.SenderEmail, m.SenderName, m.Text)
	if err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	m.ID, _ = res.LastInsertId()
	m.CreatedAt = time.Now()
	return nil
}

func (s *Storage) ListChatMessages(limit int) ([]*domain.ChatMessage, error) {
	rows, err := s.db.Query(`SELECT id, sender_email, sender_name, text, created_at
		FROM chat_messages ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var created sql.NullTime
		if err := rows.Scan(&m.ID, &m.SenderEmail, &m.SenderName, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if created.Valid {
			m.CreatedAt = created.Time
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// --- Stop tables ---

func (s *Storage) GetStops(leg domain.Leg) ([]domain.Stop, error) {
	rows, err := s.db.Query(`SELECT name, time FROM stops WHERE leg = ? ORDER BY position`, string(leg))
	if err != nil {
		return nil, fmt.Errorf("get stops: %w", err)
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		var st domain.Stop
		if err := rows.Scan(&st.Name, &st.Time); err != nil {
			return nil, fmt.Errorf("scan stop: %w", err)
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

// ReplaceStops swaps the whole stop table for one leg.
func (s *Storage) ReplaceStops(leg domain.Leg, stops []domain.Stop) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace stops: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stops WHERE leg = ?`, string(leg)); err != nil {
		return fmt.Errorf("clear stops: %w", err)
	}
	for i, st := range stops {
		_, err := tx.Exec(`INSERT INTO stops (leg, position, name, time) VALUES (?, ?, ?, ?)`,
			string(leg), i, st.Name, st.Time)
		if err != nil {
			return fmt.Errorf("insert stop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace stops: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
