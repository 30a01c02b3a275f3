package postgres

import (
	"botdesk/internal/logger"
	"botdesk/internal/repository/db"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CreateFile inserts a file row, assigning its id
func (p *PostgresDB) CreateFile(file *db.File) (*db.File, error) {
	f := *file
	f.ID = uuid.New().String()

	query := `
	INSERT INTO files (id, file_id, filename, purpose, bytes, user_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING created_at
	`

	err := p.conn.QueryRow(query, f.ID, f.RemoteFileID, f.Filename, f.Purpose, f.Bytes, f.OwnerID).Scan(&f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"file_id": f.ID, "remote_file_id": f.RemoteFileID}).Info("Created file record")
	return &f, nil
}

const fileWithBotsQuery = `
	SELECT f.id, f.file_id, f.filename, f.purpose, f.bytes, f.user_id, f.created_at,
		b.id, b.name, b.vector_store_id
	FROM files f
	LEFT JOIN file_to_bot fb ON fb.file_id = f.id
	LEFT JOIN bots b ON b.id = fb.bot_id
	WHERE %s
	ORDER BY f.created_at DESC, f.id, b.created_at`

func (p *PostgresDB) queryFilesWithBots(where string, args ...any) ([]db.FileWithBots, error) {
	rows, err := p.conn.Query(fmt.Sprintf(fileWithBotsQuery, where), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying files: %w", err)
	}
	defer rows.Close()

	var files []db.FileWithBots
	index := map[string]int{}
	for rows.Next() {
		var f db.File
		var botID, botName, storeID *string
		if err := rows.Scan(&f.ID, &f.RemoteFileID, &f.Filename, &f.Purpose, &f.Bytes, &f.OwnerID, &f.CreatedAt,
			&botID, &botName, &storeID); err != nil {
			return nil, fmt.Errorf("error scanning file: %w", err)
		}

		i, ok := index[f.ID]
		if !ok {
			files = append(files, db.FileWithBots{File: f, Bots: []db.BotRef{}})
			i = len(files) - 1
			index[f.ID] = i
		}
		if botID != nil {
			ref := db.BotRef{ID: *botID, VectorStoreID: storeID}
			if botName != nil {
				ref.Name = *botName
			}
			files[i].Bots = append(files[i].Bots, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}
	return files, nil
}

// ListFilesWithBots returns the owner's files with associated bots, newest first
func (p *PostgresDB) ListFilesWithBots(ownerID string) ([]db.FileWithBots, error) {
	if !validID(ownerID) {
		return nil, nil
	}
	return p.queryFilesWithBots("f.user_id = $1", ownerID)
}

// GetFileForOwner looks a file up by its provider id, scoped to the owner
func (p *PostgresDB) GetFileForOwner(remoteFileID, ownerID string) (*db.FileWithBots, error) {
	if !validID(ownerID) {
		return nil, db.ErrNotFound
	}
	files, err := p.queryFilesWithBots("f.file_id = $1 AND f.user_id = $2", remoteFileID, ownerID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, db.ErrNotFound
	}
	return &files[0], nil
}

// DeleteFile deletes the file row. Join rows must be removed first.
func (p *PostgresDB) DeleteFile(id string) error {
	if !validID(id) {
		return db.ErrNotFound
	}
	res, err := p.conn.Exec(`DELETE FROM files WHERE id = $1`, id)
	return affectedOne(res, err, "error deleting file")
}

// AddFileToBot creates the join row if missing and reports whether it was created
func (p *PostgresDB) AddFileToBot(fileID, botID string) (bool, error) {
	res, err := p.conn.Exec(`INSERT INTO file_to_bot (file_id, bot_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, fileID, botID)
	if err != nil {
		return false, fmt.Errorf("error creating file association: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error creating file association: %w", err)
	}
	return n == 1, nil
}

// RemoveFileFromBot deletes a single join row; a missing row is not an error
func (p *PostgresDB) RemoveFileFromBot(fileID, botID string) error {
	if _, err := p.conn.Exec(`DELETE FROM file_to_bot WHERE file_id = $1 AND bot_id = $2`, fileID, botID); err != nil {
		return fmt.Errorf("error removing file association: %w", err)
	}
	return nil
}

// RemoveFileAssociations deletes every join row of a file
func (p *PostgresDB) RemoveFileAssociations(fileID string) error {
	if _, err := p.conn.Exec(`DELETE FROM file_to_bot WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("error removing file associations: %w", err)
	}
	return nil
}

// RemoveBotAssociations deletes every join row of a bot
func (p *PostgresDB) RemoveBotAssociations(botID string) error {
	if _, err := p.conn.Exec(`DELETE FROM file_to_bot WHERE bot_id = $1`, botID); err != nil {
		return fmt.Errorf("error removing bot associations: %w", err)
	}
	return nil
}
