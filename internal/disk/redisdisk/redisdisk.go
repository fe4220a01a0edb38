// Package redisdisk implements disk.Device over a redis connection
// pool, one key per block. It gives every disk block the same
// atomic-per-block guarantee a local file gives (redis serializes
// commands on a single connection, and GET/SET of a single key is
// atomic), letting the server run against a network-addressable block
// store instead of a local file.
package redisdisk

import (
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/parasource/branchfs/internal/disk"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout     = 2 * time.Second
	defaultWriteTimeout    = 2 * time.Second
	defaultMaxIdle         = 16
	defaultMaxActive        = 128

	keyPrefix = "branchfs:block:"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

type Disk struct {
	pool *redis.Pool
	size uint32
}

func Open(conf Config, size uint32) (*Disk, error) {
	pool := &redis.Pool{
		MaxIdle:     defaultMaxIdle,
		MaxActive:   defaultMaxActive,
		Wait:        true,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialConnectTimeout(defaultConnectTimeout),
				redis.DialReadTimeout(defaultReadTimeout),
				redis.DialWriteTimeout(defaultWriteTimeout),
			}
			c, err := redis.Dial("tcp", conf.Addr, opts...)
			if err != nil {
				return nil, err
			}
			if conf.Password != "" {
				if _, err := c.Do("AUTH", conf.Password); err != nil {
					c.Close()
					return nil, err
				}
			}
			if conf.DB != 0 {
				if _, err := c.Do("SELECT", conf.DB); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
	}

	d := &Disk{pool: pool, size: size}

	conn := pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redisdisk: connecting to %s: %w", conf.Addr, err)
	}
	return d, nil
}

func (d *Disk) Size() uint32 { return d.size }

func blockKey(n uint32) string {
	return keyPrefix + fmt.Sprint(n)
}

func (d *Disk) ReadBlock(n uint32, buf []byte) error {
	if err := disk.CheckRange(n, d.size); err != nil {
		return err
	}
	if err := disk.CheckBuf(buf); err != nil {
		return err
	}

	conn := d.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", blockKey(n)))
	if err == redis.ErrNil {
		// an allocated-but-never-written block reads as zeroes, same as
		// a freshly preallocated local file.
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	if err != nil {
		return err
	}
	copy(buf, data)
	for i := len(data); i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

func (d *Disk) WriteBlock(n uint32, buf []byte) error {
	if err := disk.CheckRange(n, d.size); err != nil {
		return err
	}
	if err := disk.CheckBuf(buf); err != nil {
		return err
	}

	conn := d.pool.Get()
	defer conn.Close()

	_, err := conn.Do("SET", blockKey(n), buf)
	return err
}

func (d *Disk) Close() error {
	return d.pool.Close()
}
