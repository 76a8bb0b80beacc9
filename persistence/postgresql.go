// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

// PQStore 基于 database/sql + lib/pq 的原生 SQL 实现，
// 与 GormStore 实现同一个 Store 接口
type PQStore struct {
	db *sql.DB
}

// NewPQStore 创建 PostgreSQL 数据库连接
func NewPQStore(host string, port int, user, password, dbname string) (*PQStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PQStore{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS chat_messages (
            id BIGSERIAL PRIMARY KEY,
            room_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            display_name TEXT NOT NULL,
            text TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_chat_messages_room ON chat_messages (room_id, id)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS spaces (
            id SERIAL PRIMARY KEY,
            room_id TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            width INT NOT NULL,
            height INT NOT NULL,
            obstacles JSONB NOT NULL DEFAULT '[]'
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            user_id TEXT UNIQUE NOT NULL,
            username TEXT NOT NULL,
            avatar TEXT NOT NULL DEFAULT '',
            sprites JSONB NOT NULL DEFAULT '[]'
        )`)
	return err
}

// AppendChatMessage 插入消息，RETURNING 取回序号与时间戳
func (p *PQStore) AppendChatMessage(roomID string, msg models.ChatMessage) (models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := p.db.QueryRowContext(ctx, `
        INSERT INTO chat_messages (room_id, user_id, display_name, text)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`,
		roomID, msg.UserID, msg.DisplayName, msg.Text,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return models.ChatMessage{}, err
	}

	msg.RoomID = roomID
	return msg, nil
}

// LoadRecentMessages 返回房间最近 limit 条消息，按序号升序
func (p *PQStore) LoadRecentMessages(roomID string, limit int) ([]models.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, user_id, display_name, text, created_at
        FROM chat_messages
        WHERE room_id = $1
        ORDER BY id DESC
        LIMIT $2`,
		roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		msg := models.ChatMessage{RoomID: roomID}
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.DisplayName, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 反转为按时间先后排列
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// GetSpace 查询房间几何
func (p *PQStore) GetSpace(roomID string) (models.Space, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	space := models.Space{RoomID: roomID}
	var obstacles []byte
	err := p.db.QueryRowContext(ctx, `
        SELECT name, width, height, obstacles
        FROM spaces
        WHERE room_id = $1`,
		roomID,
	).Scan(&space.Name, &space.Width, &space.Height, &obstacles)
	if err == sql.ErrNoRows {
		return models.Space{}, ErrRecordNotFound
	}
	if err != nil {
		return models.Space{}, err
	}

	if err := json.Unmarshal(obstacles, &space.Obstacles); err != nil {
		return models.Space{}, fmt.Errorf("decode obstacles for %s: %w", roomID, err)
	}
	return space, nil
}

// GetUserProfile 查询用户资料
func (p *PQStore) GetUserProfile(userID string) (models.UserProfile, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	profile := models.UserProfile{UserID: userID}
	var sprites []byte
	err := p.db.QueryRowContext(ctx, `
        SELECT username, avatar, sprites
        FROM users
        WHERE user_id = $1`,
		userID,
	).Scan(&profile.Username, &profile.Avatar, &sprites)
	if err == sql.ErrNoRows {
		return models.UserProfile{}, ErrRecordNotFound
	}
	if err != nil {
		return models.UserProfile{}, err
	}

	if err := json.Unmarshal(sprites, &profile.Sprites); err != nil {
		return models.UserProfile{}, fmt.Errorf("decode sprites for %s: %w", userID, err)
	}
	return profile, nil
}

// Close 关闭数据库连接
func (p *PQStore) Close() error {
	return p.db.Close()
}
