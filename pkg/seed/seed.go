// Package seed creates and populates a tenant operations database with
// synthetic projects, tasks, and run history.
package seed

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
DROP TABLE IF EXISTS task_runs;
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS projects;

CREATE TABLE projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	created_date DATE NOT NULL,
	status TEXT CHECK(status IN ('active', 'archived', 'maintenance')) DEFAULT 'active'
);

CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	task_type TEXT CHECK(task_type IN ('build', 'test', 'deploy', 'backup', 'migration')) NOT NULL,
	description TEXT,
	FOREIGN KEY (project_id) REFERENCES projects(id),
	UNIQUE(project_id, name)
);

CREATE TABLE task_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL,
	start_time DATETIME NOT NULL,
	end_time DATETIME,
	status TEXT CHECK(status IN ('success', 'failed', 'running', 'cancelled')) NOT NULL,
	error_message TEXT,
	duration_seconds INTEGER,
	FOREIGN KEY (task_id) REFERENCES tasks(id)
);

CREATE INDEX idx_task_runs_status ON task_runs(status);
CREATE INDEX idx_task_runs_start_time ON task_runs(start_time);
CREATE INDEX idx_tasks_type ON tasks(task_type);
`

type project struct {
	name        string
	description string
	status      string
}

var projects = []project{
	{"Apollo", "Customer data processing pipeline", "active"},
	{"Titan", "Real-time analytics platform", "active"},
	{"Voyager", "Legacy data migration", "maintenance"},
	{"Phoenix", "Disaster recovery system", "active"},
	{"Orion", "Data warehouse ETL", "archived"},
}

var taskTemplates = map[string][]string{
	"build":     {"Build Docker image", "Compile source code", "Package artifacts"},
	"test":      {"Run unit tests", "Execute integration tests", "Performance testing"},
	"deploy":    {"Deploy to staging", "Deploy to production", "Rollback deployment"},
	"backup":    {"Database backup", "File system backup", "Backup verification"},
	"migration": {"Schema migration", "Data migration", "Rollback migration"},
}

var taskTypes = []string{"build", "test", "deploy", "backup", "migration"}

var runStatuses = []string{"success", "failed", "running", "cancelled"}

// Roughly 70% success, 20% failed, 5% running, 5% cancelled.
var statusWeights = []float64{0.7, 0.2, 0.05, 0.05}

var errorMessages = []string{
	"Connection timeout after 30 seconds",
	"Out of memory: Java heap space",
	"Database lock timeout",
	"Permission denied: access forbidden",
	"Network unreachable: host not found",
	"Invalid configuration: missing required field",
	"Dependency failure: upstream task failed",
	"Resource exhausted: disk full",
}

// Stats summarizes what a seed run produced.
type Stats struct {
	Projects int
	Tasks    int
	Runs     int
}

// Run creates the schema at dbPath and fills it with synthetic data.
// Existing tables are dropped first so repeated runs start clean.
func Run(dbPath string, rng *rand.Rand) (Stats, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return Stats{}, fmt.Errorf("failed to create schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stats, err := seed(tx, rng)
	if err != nil {
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("seeded database",
		"path", dbPath,
		"projects", stats.Projects,
		"tasks", stats.Tasks,
		"runs", stats.Runs)
	return stats, nil
}

func seed(tx *sql.Tx, rng *rand.Rand) (Stats, error) {
	now := time.Now()
	var stats Stats

	var taskIDs []int64
	for _, p := range projects {
		createdDate := now.AddDate(0, 0, -(180 + rng.Intn(186))).Format("2006-01-02")
		res, err := tx.Exec(
			`INSERT INTO projects (name, description, created_date, status) VALUES (?, ?, ?, ?)`,
			p.name, p.description, createdDate, p.status)
		if err != nil {
			return stats, fmt.Errorf("failed to insert project %s: %w", p.name, err)
		}
		projectID, _ := res.LastInsertId()
		stats.Projects++

		// 5 to 7 tasks per project, names kept unique by suffixing.
		numTasks := 5 + rng.Intn(3)
		usedNames := make(map[string]bool)
		for i := 0; i < numTasks; i++ {
			taskType := taskTypes[rng.Intn(len(taskTypes))]
			templates := taskTemplates[taskType]
			name := templates[rng.Intn(len(templates))]

			base := name
			for counter := 1; usedNames[name]; counter++ {
				name = fmt.Sprintf("%s %d", base, counter)
			}
			usedNames[name] = true

			res, err := tx.Exec(
				`INSERT INTO tasks (project_id, name, task_type, description) VALUES (?, ?, ?, ?)`,
				projectID, name, taskType, fmt.Sprintf("%s task for %s", taskType, p.name))
			if err != nil {
				return stats, fmt.Errorf("failed to insert task %s: %w", name, err)
			}
			taskID, _ := res.LastInsertId()
			taskIDs = append(taskIDs, taskID)
			stats.Tasks++
		}
	}

	for _, taskID := range taskIDs {
		// 3 to 8 historical runs spread over the last 30 days.
		numRuns := 3 + rng.Intn(6)
		for i := 0; i < numRuns; i++ {
			startTime := now.
				AddDate(0, 0, -rng.Intn(31)).
				Add(-time.Duration(rng.Intn(24)) * time.Hour).
				Add(-time.Duration(rng.Intn(60)) * time.Minute)

			status := weightedStatus(rng)

			var endTime interface{}
			var duration interface{}
			var errMsg interface{}
			if status != "running" {
				d := 10 + rng.Intn(591)
				duration = d
				endTime = startTime.Add(time.Duration(d) * time.Second).Format("2006-01-02 15:04:05")
				if status == "failed" {
					errMsg = errorMessages[rng.Intn(len(errorMessages))]
				}
			}

			_, err := tx.Exec(
				`INSERT INTO task_runs (task_id, start_time, end_time, status, error_message, duration_seconds)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				taskID, startTime.Format("2006-01-02 15:04:05"), endTime, status, errMsg, duration)
			if err != nil {
				return stats, fmt.Errorf("failed to insert task run: %w", err)
			}
			stats.Runs++
		}
	}

	return stats, nil
}

func weightedStatus(rng *rand.Rand) string {
	r := rng.Float64()
	acc := 0.0
	for i, w := range statusWeights {
		acc += w
		if r < acc {
			return runStatuses[i]
		}
	}
	return runStatuses[len(runStatuses)-1]
}
