package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/telemetry"
)

// Client archives pipeline messages in MongoDB. Copies made by ForSession
// share one connection.
type Client struct {
	conn    *archiveConn
	session string
}

type archiveConn struct {
	uri, database, collection string
	mongo                     *mongo.Client
	messages                  *mongo.Collection
}

// NewClient creates an archive client. Nothing is dialed until Connect.
func NewClient(uri, database, collection string) *Client {
	return &Client{conn: &archiveConn{uri: uri, database: database, collection: collection}}
}

// Connect dials MongoDB, checks the server answers and indexes messages by
// session and time.
func (c *Client) Connect(ctx context.Context) error {
	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(c.conn.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		mc.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongo: %w", err)
	}
	messages := mc.Database(c.conn.database).Collection(c.conn.collection)
	_, err = messages.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "session", Value: 1}, {Key: "time", Value: 1}}})
	if err != nil {
		mc.Disconnect(ctx)
		return fmt.Errorf("failed to index messages: %w", err)
	}
	c.conn.mongo, c.conn.messages = mc, messages
	return nil
}

// Close disconnects; it is a no-op before Connect.
func (c *Client) Close(ctx context.Context) error {
	if c.conn.mongo == nil {
		return nil
	}
	return c.conn.mongo.Disconnect(ctx)
}

// ForSession tags subsequently archived messages with a session name.
func (c *Client) ForSession(name string) *Client {
	return &Client{conn: c.conn, session: name}
}

var errNotConnected = errors.New("message archive is not connected")

type archivedMessage struct {
	Session string    `bson:"session"`
	Level   string    `bson:"level"`
	Text    string    `bson:"text"`
	Time    time.Time `bson:"time"`
}

// SaveMessage appends one pipeline message to the archive
func (c *Client) SaveMessage(ctx context.Context, msg telemetry.Message) error {
	if c.conn.messages == nil {
		return errNotConnected
	}
	_, err := c.conn.messages.InsertOne(ctx, archivedMessage{
		Session: c.session,
		Level:   msg.Level.String(),
		Text:    msg.Text,
		Time:    msg.Time,
	})
	return err
}

// SessionErrors returns the error messages archived for a session, oldest first
func (c *Client) SessionErrors(ctx context.Context, session string) ([]string, error) {
	if c.conn.messages == nil {
		return nil, errNotConnected
	}

	filter := bson.M{"session": session, "level": telemetry.Error.String()}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}}).SetProjection(bson.M{"text": 1, "_id": 0})
	cursor, err := c.conn.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	var out []string
	for cursor.Next(ctx) {
		var doc archivedMessage
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		out = append(out, doc.Text)
	}
	return out, cursor.Err()
}
