package oauth2

import (
	"sync"

	xoauth2 "golang.org/x/oauth2"
)

// TokenCache provides thread-safe caching for OAuth2 tokens
type TokenCache struct {
	tokens map[string]*xoauth2.Token
	mutex  sync.RWMutex
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*xoauth2.Token),
	}
}

func (c *TokenCache) Get(key string) *xoauth2.Token {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.tokens[key]
}

func (c *TokenCache) Set(key string, token *xoauth2.Token) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens[key] = token
}

func (c *TokenCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.tokens, key)
}

// Clear removes all tokens from the cache
func (c *TokenCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens = make(map[string]*xoauth2.Token)
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.tokens)
}

// GlobalCache is shared by providers created without WithCache.
var GlobalCache = NewTokenCache()
