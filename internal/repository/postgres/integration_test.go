package postgres

import (
	"botdesk/internal/config"
	"botdesk/internal/repository/db"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testDB is nil when the container could not be started; integration tests skip then
var testDB *PostgresDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "botdesk",
				"POSTGRES_PASSWORD": "botdesk",
				"POSTGRES_DB":       "botdesk",
			},
			// postgres logs this once for the init server and once for the real one
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Printf("Skipping postgres integration tests: %v", err)
		os.Exit(m.Run())
	}

	code := func() int {
		defer func() { _ = container.Terminate(ctx) }()

		host, err := container.Host(ctx)
		if err != nil {
			log.Printf("Failed to get container host: %v", err)
			return 1
		}
		if host == "" || host == "null" {
			host = "localhost"
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			log.Printf("Failed to get mapped port: %v", err)
			return 1
		}

		testDB, err = NewPostgresDB(config.DatabaseConfig{
			Host:           host,
			Port:           port.Port(),
			User:           "botdesk",
			Password:       "botdesk",
			Name:           "botdesk",
			SSLMode:        "disable",
			MigrationsPath: "file://../../../migrations",
		})
		if err != nil {
			log.Printf("Failed to open test database: %v", err)
			return 1
		}
		defer testDB.Close()

		return m.Run()
	}()

	os.Exit(code)
}

func requireDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not available")
	}
	return testDB
}

var userSeq int

func createUser(t *testing.T, p *PostgresDB) *db.User {
	t.Helper()
	userSeq++
	u, err := p.CreateUser("Ada", fmt.Sprintf("ada-%d-%d@example.com", time.Now().UnixNano(), userSeq), "secret1")
	require.NoError(t, err)
	return u
}

func createBot(t *testing.T, p *PostgresDB, ownerID string) *db.Bot {
	t.Helper()
	b, err := p.CreateBot(&db.Bot{OwnerID: ownerID, Name: "Helper", Instruction: "Be brief."})
	require.NoError(t, err)
	return b
}

func createFile(t *testing.T, p *PostgresDB, ownerID string) *db.File {
	t.Helper()
	f, err := p.CreateFile(&db.File{
		RemoteFileID: fmt.Sprintf("file-%d", time.Now().UnixNano()),
		Filename:     "notes.txt",
		Purpose:      "assistants",
		Bytes:        42,
		OwnerID:      ownerID,
	})
	require.NoError(t, err)
	return f
}

func countAssociations(t *testing.T, p *PostgresDB, fileID, botID string) int {
	t.Helper()
	var n int
	err := p.conn.QueryRow(`SELECT COUNT(*) FROM file_to_bot WHERE file_id = $1 AND bot_id = $2`, fileID, botID).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestPostgres_CreateUserRejectsDuplicateEmail(t *testing.T) {
	p := requireDB(t)

	u := createUser(t, p)
	_, err := p.CreateUser("Other", u.Email, "secret2")
	assert.ErrorIs(t, err, db.ErrEmailTaken)

	got, err := p.GetUserByEmail(u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.VerifyPassword("secret1"))
}

func TestPostgres_AddFileToBotIsIdempotent(t *testing.T) {
	p := requireDB(t)
	owner := createUser(t, p)
	bot := createBot(t, p, owner.ID)
	file := createFile(t, p, owner.ID)

	created, err := p.AddFileToBot(file.ID, bot.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.AddFileToBot(file.ID, bot.ID)
	require.NoError(t, err)
	assert.False(t, created, "second association of the same pair must not create a row")

	assert.Equal(t, 1, countAssociations(t, p, file.ID, bot.ID))

	withBots, err := p.GetFileForOwner(file.RemoteFileID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bot.ID}, withBots.BotIDs())
}

func TestPostgres_OwnerScoping(t *testing.T) {
	p := requireDB(t)
	owner := createUser(t, p)
	stranger := createUser(t, p)
	bot := createBot(t, p, owner.ID)
	file := createFile(t, p, owner.ID)

	got, err := p.GetBotForOwner(bot.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Helper", got.Name)

	_, err = p.GetBotForOwner(bot.ID, stranger.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = p.GetFileForOwner(file.RemoteFileID, stranger.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	bots, err := p.GetBotsForOwner([]string{bot.ID}, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, bots)

	assert.ErrorIs(t, p.DeleteBot(bot.ID, stranger.ID), db.ErrNotFound)
}

func TestPostgres_DeleteBotAfterRemovingAssociations(t *testing.T) {
	p := requireDB(t)
	owner := createUser(t, p)
	bot := createBot(t, p, owner.ID)
	file := createFile(t, p, owner.ID)

	_, err := p.AddFileToBot(file.ID, bot.ID)
	require.NoError(t, err)

	require.NoError(t, p.RemoveBotAssociations(bot.ID))
	require.NoError(t, p.DeleteBot(bot.ID, owner.ID))

	_, err = p.GetBot(bot.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Equal(t, 0, countAssociations(t, p, file.ID, bot.ID))

	// the file outlives the bot
	remaining, err := p.GetFileForOwner(file.RemoteFileID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining.Bots)
}
