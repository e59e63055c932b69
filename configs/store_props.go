package configs

import (
	"path/filepath"

	"github.com/magiconair/properties"
)

// StoreProps are the connection settings of the record stores.
type StoreProps struct {
	PGDSN         string
	PGMaxConns    int
	MongoURI      string
	MongoDatabase string
	FileDir       string
}

// LoadStoreProps reads a go-ycsb style properties file. An empty path yields
// the defaults; baseDir anchors the file store when file.dir is not set.
func LoadStoreProps(path string, baseDir string) (*StoreProps, error) {
	p := properties.NewProperties()
	if path != "" {
		var err error
		p, err = properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return nil, Errorf("loading store properties %s: %v", path, err)
		}
	}
	res := &StoreProps{
		PGDSN:         p.GetString("pg.dsn", DefaultPGDSN),
		PGMaxConns:    p.GetInt("pg.max_conns", DefaultPGMaxConns),
		MongoURI:      p.GetString("mongodb.uri", DefaultMongoURI),
		MongoDatabase: p.GetString("mongodb.database", DefaultMongoDatabase),
		FileDir:       p.GetString("file.dir", filepath.Join(baseDir, DefaultFileStoreSubDir)),
	}
	if res.PGMaxConns <= 0 {
		return nil, Errorf("pg.max_conns must be positive, got %d", res.PGMaxConns)
	}
	return res, nil
}
