package students

// SchemaStatements creates the tables used by Repository. Every statement is idempotent.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS exam_state (
		id INTEGER PRIMARY KEY DEFAULT 1,
		duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes > 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (id = 1)
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(20) UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS results (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		exam_id VARCHAR(50) NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		answers JSONB,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, exam_id)
	)`,
	`INSERT INTO exam_state (id, duration_minutes)
	VALUES (1, 60)
	ON CONFLICT (id) DO NOTHING`,
}
