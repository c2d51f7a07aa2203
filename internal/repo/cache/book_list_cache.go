// Package cache keeps hot catalog read paths off Postgres.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"bookstack/internal/entity"

	"github.com/redis/go-redis/v9"
)

const visibleListPrefix = "visible_books:"

// BookListCache caches visible-list query results in redis, keyed by the raw
// search query. Entries expire on their own; mutations that change the
// visible set drop every entry eagerly. Cache failures degrade to a database
// read, never to an error.
type BookListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBookListCache(client *redis.Client, ttl time.Duration) *BookListCache {
	return &BookListCache{client: client, ttl: ttl}
}

func (c *BookListCache) Get(query string) ([]*entity.Book, bool) {
	data, err := c.client.Get(context.Background(), visibleListPrefix+query).Bytes()
	if err != nil {
		return nil, false
	}

	var books []*entity.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, false
	}
	return books, true
}

func (c *BookListCache) Set(query string, books []*entity.Book) {
	data, err := json.Marshal(books)
	if err != nil {
		return
	}
	c.client.Set(context.Background(), visibleListPrefix+query, data, c.ttl)
}

// Invalidate drops every cached visible list.
func (c *BookListCache) Invalidate() {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, visibleListPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
