package postgres

import (
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const botColumns = `id, user_id, name, instruction, assistant_id, vector_store_id,
	chat_enabled, chat_app_id, chat_region, chat_api_key, chat_bot_uid, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBot(row rowScanner) (*db.Bot, error) {
	var b db.Bot
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Instruction, &b.AssistantID, &b.VectorStoreID,
		&b.Chat.Enabled, &b.Chat.AppID, &b.Chat.Region, &b.Chat.APIKey, &b.Chat.BotUID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresDB) queryBots(query string, args ...any) ([]db.Bot, error) {
	rows, err := p.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying bots: %w", err)
	}
	defer rows.Close()

	var bots []db.Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning bot: %w", err)
		}
		bots = append(bots, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bots: %w", err)
	}
	return bots, nil
}

// ListBotsByOwner returns the owner's bots, newest first
func (p *PostgresDB) ListBotsByOwner(ownerID string) ([]db.Bot, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	return p.queryBots(`SELECT `+botColumns+` FROM bots WHERE user_id = $1 ORDER BY created_at DESC`, ownerID)
}

// GetBot retrieves a bot without an ownership filter. Only the webhook relay uses it.
func (p *PostgresDB) GetBot(id string) (*db.Bot, error) {
	if !validID(id) {
		return nil, db.ErrNotFound
	}
	b, err := scanBot(p.conn.QueryRow(`SELECT `+botColumns+` FROM bots WHERE id = $1`, id))
	if err != nil {
		if err = notFound(err); err == db.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error retrieving bot: %w", err)
	}
	return b, nil
}

// GetBotForOwner retrieves a bot by (id, owner)
func (p *PostgresDB) GetBotForOwner(id, ownerID string) (*db.Bot, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, db.ErrNotFound
	}
	b, err := scanBot(p.conn.QueryRow(`SELECT `+botColumns+` FROM bots WHERE id = $1 AND user_id = $2`, id, ownerID))
	if err != nil {
		if err = notFound(err); err == db.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error retrieving bot: %w", err)
	}
	return b, nil
}

// GetBotsForOwner returns the subset of ids that exist and belong to the owner
func (p *PostgresDB) GetBotsForOwner(ids []string, ownerID string) ([]db.Bot, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	return p.queryBots(`SELECT `+botColumns+` FROM bots WHERE id = ANY($1::uuid[]) AND user_id = $2`, pq.Array(valid), ownerID)
}

// CreateBot inserts a bot row, assigning its id
func (p *PostgresDB) CreateBot(bot *db.Bot) (*db.Bot, error) {
	b := *bot
	b.ID = uuid.New().String()

	query := `
	INSERT INTO bots (id, user_id, name, instruction, assistant_id, vector_store_id,
		chat_enabled, chat_app_id, chat_region, chat_api_key, chat_bot_uid)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING created_at, updated_at
	`

	err := p.conn.QueryRow(query, b.ID, b.OwnerID, b.Name, b.Instruction, b.AssistantID, b.VectorStoreID,
		b.Chat.Enabled, b.Chat.AppID, b.Chat.Region, b.Chat.APIKey, b.Chat.BotUID).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating bot: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"bot_id": b.ID, "user_id": b.OwnerID}).Info("Created new bot")
	return &b, nil
}

// UpdateBot patches name and/or instruction; nil leaves a field unchanged
func (p *PostgresDB) UpdateBot(id, ownerID string, name, instruction *string) (*db.Bot, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, db.ErrNotFound
	}

	query := `
	UPDATE bots SET
		name = COALESCE($3, name),
		instruction = COALESCE($4, instruction),
		updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND user_id = $2
	RETURNING ` + botColumns

	b, err := scanBot(p.conn.QueryRow(query, id, ownerID, name, instruction))
	if err != nil {
		if err = notFound(err); err == db.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error updating bot: %w", err)
	}
	return b, nil
}

// UpdateBotIntegration replaces the chat integration settings
func (p *PostgresDB) UpdateBotIntegration(id, ownerID string, integration db.ChatIntegration) (*db.Bot, error) {
	if !validID(id) || !validID(ownerID) {
		return nil, db.ErrNotFound
	}

	query := `
	UPDATE bots SET
		chat_enabled = $3, chat_app_id = $4, chat_region = $5, chat_api_key = $6, chat_bot_uid = $7,
		updated_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND user_id = $2
	RETURNING ` + botColumns

	b, err := scanBot(p.conn.QueryRow(query, id, ownerID,
		integration.Enabled, integration.AppID, integration.Region, integration.APIKey, integration.BotUID))
	if err != nil {
		if err = notFound(err); err == db.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("error updating bot integration: %w", err)
	}
	return b, nil
}

// DeleteBot deletes the bot row. Join rows must be removed first.
func (p *PostgresDB) DeleteBot(id, ownerID string) error {
	if !validID(id) || !validID(ownerID) {
		return db.ErrNotFound
	}
	res, err := p.conn.Exec(`DELETE FROM bots WHERE id = $1 AND user_id = $2`, id, ownerID)
	return affectedOne(res, err, "error deleting bot")
}

func affectedOne(res sql.Result, err error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}
