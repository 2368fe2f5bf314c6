package cache

import (
	"bufio"
	"encoding/gob"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// An on-disk cache for session material that outlives one invocation:
// the SAML payload (until its NotOnOrAfter), the role list, and the
// optionally remembered password. AWS credentials themselves live in
// the shared credentials file, not here.

var cacheHandle *cache.Cache

func Cache() *cache.Cache {
	if cacheHandle == nil {
		sessionExpiry := time.Duration(viper.GetInt("okta.session_cache_limit")) * time.Second
		err := importCache(sessionExpiry)

		if err != nil {
			log.WithError(err).Debug("Couldn't read cache from file, starting empty")
			cacheHandle = cache.New(sessionExpiry, sessionExpiry)
		}
	}

	return cacheHandle
}

func importCache(sessionExpiry time.Duration) error {
	cacheFile, err := os.Open(viper.GetString("cache.file_location"))

	if err != nil {
		return err
	}

	defer cacheFile.Close()

	decoder := gob.NewDecoder(bufio.NewReader(cacheFile))
	var items map[string]cache.Item

	err = decoder.Decode(&items)

	if err != nil {
		return err
	}

	cacheHandle = cache.NewFrom(sessionExpiry, sessionExpiry, items)

	return nil
}

func Write(key string, value interface{}, duration time.Duration) {
	Cache().Set(key, value, duration)
}

func WriteDefault(key string, value interface{}) {
	Cache().SetDefault(key, value)
}

func Check(key string) interface{} {
	value, exists := Cache().Get(key)

	if !exists {
		return nil
	}

	return value
}

func Remove(key string) {
	Cache().Delete(key)
}

func Export() error {
	cacheFile, err := os.Create(viper.GetString("cache.file_location"))

	if err != nil {
		return err
	}

	defer cacheFile.Close()

	writer := bufio.NewWriter(cacheFile)
	enc := gob.NewEncoder(writer)
	err = enc.Encode(Cache().Items())

	if err != nil {
		return err
	}

	return writer.Flush()
}
