package bigquery

import (
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/store"
)

var placeholder = regexp.MustCompile(`@([a-z_]+)`)

// assertParamsBound checks that every @name in sql has exactly one parameter
// and that no parameter is left unused.
func assertParamsBound(t *testing.T, sql string, params []bigquery.QueryParameter) {
	t.Helper()

	byName := map[string]int{}
	for _, p := range params {
		byName[p.Name]++
	}
	for name, n := range byName {
		assert.Equal(t, 1, n, "parameter %s bound %d times", name, n)
	}

	used := map[string]bool{}
	for _, m := range placeholder.FindAllStringSubmatch(sql, -1) {
		used[m[1]] = true
		assert.Contains(t, byName, m[1], "placeholder @%s has no parameter", m[1])
	}
	for name := range byName {
		assert.True(t, used[name], "parameter %s is never referenced", name)
	}
}

func sampleTransaction() *domain.Transaction {
	next := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Transaction{
		ID:                 "r1",
		UserID:             "u1",
		Type:               domain.TransactionTypeExpense,
		Title:              "Rent",
		Amount:             1500000,
		Category:           "housing",
		Date:               time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		IsRecurring:        true,
		RecurringInterval:  domain.IntervalMonthly,
		NextRecurrenceDate: &next,
		Status:             domain.TransactionStatusCompleted,
		PaymentMethod:      domain.PaymentMethodUPI,
		CreatedAt:          next,
		UpdatedAt:          next,
	}
}

func TestTransactionRow_RoundTrip(t *testing.T) {
	tx := sampleTransaction()
	row := transactionRowFromDomain(tx)

	assert.Equal(t, civil.Date{Year: 2024, Month: time.December, Day: 1}, row.OccurredOn)
	assert.False(t, row.Description.Valid)
	assert.False(t, row.LastProcessed.Valid)
	assert.True(t, row.NextRecurrenceDate.Valid)

	assert.Equal(t, tx, row.toDomain())
}

func TestDueSettingRow_MissingOwner(t *testing.T) {
	row := &dueSettingRow{ReportSettingRow: ReportSettingRow{SettingID: "s1", UserID: "gone", Enabled: true, Frequency: "MONTHLY"}}
	due := row.toDomain()
	assert.Nil(t, due.Owner)
	assert.Equal(t, "s1", due.Setting.ID)

	row.OwnerID = bigquery.NullString{StringVal: "gone", Valid: true}
	row.OwnerEmail = bigquery.NullString{StringVal: "a@example.com", Valid: true}
	due = row.toDomain()
	require.NotNil(t, due.Owner)
	assert.Equal(t, "a@example.com", due.Owner.Email)
}

func TestMaterializeScript(t *testing.T) {
	tx := sampleTransaction()
	occ := tx.Materialize("occ-1", time.Now())
	sql, params := materializeScript("`p.d.transactions`", transactionRowFromDomain(occ), tx.ID, time.Now(), time.Now())

	assert.True(t, strings.HasPrefix(strings.TrimSpace(sql), "BEGIN TRANSACTION;"))
	assert.Contains(t, sql, "COMMIT TRANSACTION;")
	assert.Contains(t, sql, recurringNotFound)
	assertParamsBound(t, sql, params)
}

func TestRecordOutcomeScript(t *testing.T) {
	now := time.Now()
	sql, params := recordOutcomeScript("`p.d.reports`", "`p.d.report_settings`", store.ReportOutcome{
		Report:         domain.Report{ID: "rep", UserID: "u1", Period: "p", SentDate: now, Status: domain.ReportStatusSent, CreatedAt: now},
		SettingID:      "s1",
		NextReportDate: now,
	})

	assert.Contains(t, sql, "BEGIN TRANSACTION;")
	assert.Contains(t, sql, settingNotFound)
	assertParamsBound(t, sql, params)
}

func TestCreateUserScript(t *testing.T) {
	now := time.Now()
	sql, params := createUserScript("`p.d.users`", "`p.d.report_settings`",
		&UserRow{UserID: "u1", Name: "Asha", Email: "a@example.com", CreatedTS: now},
		settingRowFromDomain(&domain.ReportSetting{ID: "s1", UserID: "u1", Enabled: true, Frequency: domain.ReportFrequencyMonthly, CreatedAt: now, UpdatedAt: now}))

	assert.Contains(t, sql, emailTaken)
	assertParamsBound(t, sql, params)
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_finora_tables.sql", true, 1, "create_finora_tables"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.t`")},
		"0001_first.sql":  {Data: []byte("SELECT 1")},
		"README.md":       {Data: []byte("notes")},
	}

	migrations, err := LoadMigrations(fsys, "proj", "ds")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "second", migrations[1].Name)
	assert.Equal(t, "SELECT 2 FROM `proj.ds.t`", migrations[1].SQL)

	other, err := LoadMigrations(fsys, "other", "ds2")
	require.NoError(t, err)
	assert.Equal(t, migrations[1].Checksum, other[1].Checksum, "checksum must not depend on the target dataset")
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	_, err := LoadMigrations(fsys, "p", "d")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := LoadMigrations(EmbeddedMigrations(), "proj", "finance")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, 1, migrations[0].Version)

	for _, table := range []string{transactionsTable, usersTable, reportSettingsTable, reportsTable} {
		assert.Contains(t, migrations[0].SQL, "`proj.finance."+table+"`")
	}
	assert.NotContains(t, migrations[0].SQL, "{{")
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Name: "tables", Checksum: "aaa"},
		{Version: 2, Name: "view", Checksum: "bbb"},
		{Version: 3, Name: "index", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "old"},
	}

	pending, changed := Pending(all, applied)
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Version)
	require.Len(t, changed, 1)
	assert.Equal(t, 2, changed[0].Version)

	pending, changed = Pending(all, nil)
	assert.Len(t, pending, 3)
	assert.Empty(t, changed)
}
