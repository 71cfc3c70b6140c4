package objectis

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/db/engines/maple"
	"github.com/ValentinKolb/objectis/lib/keyspace"
	"github.com/ValentinKolb/objectis/lib/query"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/ValentinKolb/objectis/lib/store/lstore"
	"github.com/ValentinKolb/objectis/lib/store/rstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Person struct {
	ID      string   `json:"id"`
	Age     int      `json:"age"`
	Name    string   `json:"name"`
	Friends []string `json:"friends"`
}

type unregistered struct {
	ID string
}

type withoutID struct {
	Name string
}

const personType = "objectis.Person"

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

type backend struct {
	name string
	pool func(t *testing.T) store.IPool
}

var backends = []backend{
	{"memory", func(t *testing.T) store.IPool {
		return lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 16)
	}},
	{"redis", func(t *testing.T) store.IPool {
		srv := miniredis.RunT(t)
		return rstore.NewRedisPool(&redis.Options{Addr: srv.Addr(), PoolSize: 16})
	}},
}

// forEachBackend runs fn once per backend with a fresh client that has Person registered
func forEachBackend(t *testing.T, fn func(t *testing.T, c *Client)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newClient(t, b.pool(t), nil))
		})
	}
}

func newClient(t *testing.T, pool store.IPool, configure func(conf *common.ClientConfig)) *Client {
	t.Helper()
	conf := common.DefaultClientConfig()
	conf.Workers = 4
	if configure != nil {
		configure(&conf)
	}
	c, err := NewClient(pool, conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, Register[Person](c))
	return c
}

// people returns n records with ids p000.., ages 20.. and names N0..
func people(n int) []*Person {
	out := make([]*Person, n)
	for i := range out {
		out[i] = &Person{
			ID:      fmt.Sprintf("p%03d", i),
			Age:     20 + i,
			Name:    fmt.Sprintf("N%d", i),
			Friends: []string{fmt.Sprintf("f%d", i%3)},
		}
	}
	return out
}

func idsOf(recs []*Person) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		if r != nil {
			out[i] = r.ID
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

func TestRegistration(t *testing.T) {
	c := newClient(t, backends[0].pool(t), nil)
	ctx := context.Background()

	assert.True(t, IsRegistered[Person](c))
	assert.False(t, IsRegistered[unregistered](c))
	assert.NoError(t, Register[Person](c), "registering twice is a no-op")
	assert.ErrorIs(t, Register[withoutID](c), ErrSchema)

	// every operation fails before touching the backend
	assert.ErrorIs(t, Create(ctx, c, &unregistered{ID: "x"}), ErrNotRegistered)
	_, err := Get[unregistered](ctx, c, "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = List[unregistered](ctx, c)
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = Filter[unregistered](ctx, c).Fetch()
	assert.ErrorIs(t, err, ErrNotRegistered)
	_, err = Collection[unregistered](c, "x")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.ErrorIs(t, CreateAll(ctx, c, []*unregistered{{ID: "x"}}), ErrNotRegistered)
	assert.Zero(t, c.Pool().Stats().Acquires)
}

// --------------------------------------------------------------------------
// CRUD
// --------------------------------------------------------------------------

func TestCRUD(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		p := &Person{ID: "ada", Age: 36, Name: "Ada", Friends: []string{"charles"}}

		require.NoError(t, Create(ctx, c, p))

		got, err := Get[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.Equal(t, p, got)

		ok, err := Exists[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.True(t, ok)

		p.Age = 37
		require.NoError(t, Update(ctx, c, p))
		got, err = Get[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.Equal(t, 37, got.Age)

		p.Age = 38
		require.NoError(t, Set(ctx, c, p))
		got, err = Get[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.Equal(t, 38, got.Age)

		require.NoError(t, Delete(ctx, c, p))
		got, err = Get[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.Nil(t, got)

		ok, err = Exists[Person](ctx, c, "ada")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestKeyLayout(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, Create(ctx, c, &Person{ID: "ada"}))

		conn, err := c.Pool().Acquire(ctx)
		require.NoError(t, err)
		defer c.Pool().Release(conn)

		_, ok, err := conn.Get(ctx, personType+"/ada")
		require.NoError(t, err)
		assert.True(t, ok)

		members, err := conn.SMembers(ctx, personType)
		require.NoError(t, err)
		assert.Equal(t, []string{"ada"}, members)
	})
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(3)))

		require.NoError(t, DeleteByID[Person](ctx, c, "nobody"))
		require.NoError(t, Delete(ctx, c, &Person{ID: "ghost"}))

		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Equal(t, []string{"p000", "p001", "p002"}, idsOf(all))
	})
}

func TestCreateWithID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		p := &Person{Name: "anonymous"}

		require.NoError(t, CreateWithID(ctx, c, p, "explicit"))
		assert.Empty(t, p.ID, "the record must not be modified")

		got, err := Get[Person](ctx, c, "explicit")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "anonymous", got.Name)
		assert.Empty(t, got.ID)

		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestInvalidInput(t *testing.T) {
	c := newClient(t, backends[0].pool(t), nil)
	ctx := context.Background()

	assert.ErrorIs(t, Create(ctx, c, &Person{}), ErrInvalidField)
	assert.ErrorIs(t, Create[Person](ctx, c, nil), ErrInvalidField)
	assert.ErrorIs(t, CreateWithID(ctx, c, &Person{}, ""), ErrInvalidField)
	assert.ErrorIs(t, CreateAll(ctx, c, []*Person{{ID: "a"}, {}}), ErrInvalidField)
	assert.ErrorIs(t, CreateAll(ctx, c, []*Person{{ID: "a"}, nil}), ErrInvalidField)
	assert.ErrorIs(t, DeleteByID[Person](ctx, c, ""), ErrInvalidField)
	assert.ErrorIs(t, DeleteAllByID[Person](ctx, c, "a", ""), ErrInvalidField)

	_, err := Get[Person](ctx, c, "")
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = GetMany[Person](ctx, c, "a", "")
	assert.ErrorIs(t, err, ErrInvalidField)
	_, err = Exists[Person](ctx, c, "")
	assert.ErrorIs(t, err, ErrInvalidField)

	// nothing was written by the rejected bulk create
	all, err := List[Person](ctx, c)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// --------------------------------------------------------------------------
// Bulk Operations
// --------------------------------------------------------------------------

func TestBulkCreateAndFetch(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		for _, b := range backends {
			t.Run(fmt.Sprintf("%s/parallel=%v", b.name, parallel), func(t *testing.T) {
				c := newClient(t, b.pool(t), func(conf *common.ClientConfig) {
					conf.Parallel = parallel
				})
				ctx := context.Background()

				recs := people(200)
				require.NoError(t, CreateAll(ctx, c, recs))

				ids := idsOf(recs)
				got, err := GetMany[Person](ctx, c, ids...)
				require.NoError(t, err)
				require.Len(t, got, 200)
				for i, rec := range got {
					require.NotNil(t, rec, "position %d", i)
					assert.Equal(t, ids[i], rec.ID)
					assert.Equal(t, recs[i], rec)
				}

				all, err := List[Person](ctx, c)
				require.NoError(t, err)
				assert.Equal(t, ids, idsOf(all))
			})
		}
	}
}

// Workers of one bulk create all add to the same type index, none of these
// additions may get lost.
func TestBulkCreateKeepsEveryIndexEntry(t *testing.T) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(8))

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			c := newClient(t, b.pool(t), func(conf *common.ClientConfig) {
				conf.Workers = 8
			})
			ctx := context.Background()

			for round := 0; round < 25; round++ {
				require.NoError(t, Flush(ctx, c))
				require.NoError(t, CreateAll(ctx, c, people(200)))

				var members []string
				require.NoError(t, c.withConn(ctx, "test", func(ctx context.Context, conn store.IConn) (err error) {
					members, err = conn.SMembers(ctx, keyspace.TypeIndexKey(personType))
					return err
				}))
				require.Len(t, members, 200, "round %d", round)

				all, err := List[Person](ctx, c)
				require.NoError(t, err)
				require.Len(t, all, 200, "round %d", round)
			}
		})
	}
}

func TestGetManyIsPositional(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(3)))

		got, err := GetMany[Person](ctx, c, "p002", "missing", "p000")
		require.NoError(t, err)
		assert.Equal(t, []string{"p002", "", "p000"}, idsOf(got))
		assert.Nil(t, got[1])

		got, err = GetMany[Person](ctx, c)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestListSkipsStaleIndexEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(60)))

		// remove a record body behind the client's back
		conn, err := c.Pool().Acquire(ctx)
		require.NoError(t, err)
		_, err = conn.Del(ctx, keyspace.ObjectKey(personType, "p010"))
		require.NoError(t, err)
		c.Pool().Release(conn)

		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Len(t, all, 59)
		assert.NotContains(t, idsOf(all), "p010")
	})
}

func TestBatchFailureIsReportedAsOperationFailed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(100)))

		conn, err := c.Pool().Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, conn.Set(ctx, keyspace.ObjectKey(personType, "p077"), []byte("garbage")))
		c.Pool().Release(conn)

		got, err := List[Person](ctx, c)
		assert.ErrorIs(t, err, ErrOperationFailed)
		assert.Nil(t, got)

		_, err = Filter[Person](ctx, c).Fetch()
		assert.ErrorIs(t, err, ErrOperationFailed)
	})
}

func TestDeleteAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		recs := people(10)
		require.NoError(t, CreateAll(ctx, c, recs))

		require.NoError(t, DeleteAll(ctx, c, recs[:3]))
		require.NoError(t, DeleteAllByID[Person](ctx, c, "p003", "p004", "missing"))
		require.NoError(t, DeleteAllByID[Person](ctx, c))

		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Equal(t, idsOf(recs[5:]), idsOf(all))
	})
}

func TestFlush(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(5)))
		require.NoError(t, Flush(ctx, c))

		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestClosedClient(t *testing.T) {
	c := newClient(t, backends[0].pool(t), nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := Create(context.Background(), c, &Person{ID: "late"})
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.ErrorIs(t, err, store.ErrPoolClosed)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

func TestPersonScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		require.NoError(t, CreateAll(ctx, c, people(10)))

		res, err := Filter[Person](ctx, c).WhereLessThanOrEqualTo("age", 24).Fetch()
		require.NoError(t, err)
		ages := make([]int, 0, len(res.Items))
		for _, p := range res.Items {
			ages = append(ages, p.Age)
		}
		assert.Equal(t, []int{20, 21, 22, 23, 24}, ages)
		assert.Equal(t, "p004", res.LastID)

		res, err = Filter[Person](ctx, c).OrderBy("name", query.Descending).Offset(3).Limit(2).Fetch()
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "N6", res.Items[0].Name)
		assert.Equal(t, "N5", res.Items[1].Name)

		res, err = Filter[Person](ctx, c).WhereArrayContains("friends", "f1").Fetch()
		require.NoError(t, err)
		assert.Equal(t, []string{"p001", "p004", "p007"}, idsOf(res.Items))

		_, err = Filter[Person](ctx, c).WhereEqualTo("height", 180).Fetch()
		assert.ErrorIs(t, err, ErrInvalidField)
	})
}

func TestFilterItems(t *testing.T) {
	c := newClient(t, backends[0].pool(t), nil)

	res, err := FilterItems(c, people(5)).WhereGreaterThan("age", 22).Fetch()
	require.NoError(t, err)
	assert.Equal(t, []string{"p003", "p004"}, idsOf(res.Items))

	_, err = FilterItems(c, []*unregistered{{ID: "x"}}).Fetch()
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// --------------------------------------------------------------------------
// Collections
// --------------------------------------------------------------------------

func TestCollection(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		recs := people(6)
		require.NoError(t, CreateAll(ctx, c, recs))

		team, err := Collection[Person](c, "team")
		require.NoError(t, err)
		assert.Equal(t, "team", team.Name())
		assert.Equal(t, personType+"/team", team.Key())

		require.NoError(t, team.Add(ctx, recs[4]))
		require.NoError(t, team.AddAll(ctx, recs[:3]))

		ok, err := team.Contains(ctx, recs[4])
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = team.ContainsID(ctx, "p005")
		require.NoError(t, err)
		assert.False(t, ok)

		members, err := team.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"p000", "p001", "p002", "p004"}, idsOf(members))

		res, err := team.Filter(ctx).WhereGreaterThan("age", 21).Fetch()
		require.NoError(t, err)
		assert.Equal(t, []string{"p002", "p004"}, idsOf(res.Items))

		require.NoError(t, team.Delete(ctx, recs[0]))
		require.NoError(t, team.DeleteByID(ctx, "p001"))
		require.NoError(t, team.DeleteAll(ctx, recs[4:5]))
		require.NoError(t, team.DeleteAllByID(ctx, "missing"))

		ids, err := team.IDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"p002"}, ids)

		// removing members does not delete records
		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Len(t, all, 6)
	})
}

func TestCollectionMembershipIsIndependent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()

		team, err := Collection[Person](c, "team")
		require.NoError(t, err)

		// members without a stored record are listed as ids only
		require.NoError(t, team.Add(ctx, &Person{ID: "ghost"}))
		ids, err := team.IDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ghost"}, ids)

		members, err := team.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, members)

		// the type index is untouched
		all, err := List[Person](ctx, c)
		require.NoError(t, err)
		assert.Empty(t, all)

		_, err = Collection[Person](c, "")
		assert.ErrorIs(t, err, ErrInvalidField)
		assert.ErrorIs(t, team.Add(ctx, &Person{}), ErrInvalidField)
	})
}

func TestCollectionConcurrentAdds(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c *Client) {
		ctx := context.Background()
		recs := people(200)
		require.NoError(t, CreateAll(ctx, c, recs))

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				// each goroutine uses its own handle on the same key
				team, err := Collection[Person](c, "team")
				if !assert.NoError(t, err) {
					return
				}
				for i := g; i < len(recs); i += 8 {
					assert.NoError(t, team.Add(ctx, recs[i]))
				}
			}(g)
		}
		wg.Wait()

		team, err := Collection[Person](c, "team")
		require.NoError(t, err)
		members, err := team.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, idsOf(recs), idsOf(members))
	})
}

// --------------------------------------------------------------------------
// Codecs, Stats and Metrics
// --------------------------------------------------------------------------

func TestCodecs(t *testing.T) {
	for _, name := range []string{"json", "go-json", "gob"} {
		for _, compression := range []string{"none", "lz4", "zstd"} {
			t.Run(name+"+"+compression, func(t *testing.T) {
				c := newClient(t, backends[0].pool(t), func(conf *common.ClientConfig) {
					conf.Codec = name
					conf.Compression = compression
				})
				ctx := context.Background()

				p := &Person{ID: "ada", Age: 36, Name: "Ada", Friends: []string{"a", "b", "c"}}
				require.NoError(t, Create(ctx, c, p))
				got, err := Get[Person](ctx, c, "ada")
				require.NoError(t, err)
				assert.Equal(t, p, got)
			})
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	pool := backends[0].pool(t)
	defer pool.Close()

	conf := common.DefaultClientConfig()
	conf.Codec = "xml"
	_, err := NewClient(pool, conf)
	assert.Error(t, err)

	_, err = NewClient(nil, common.DefaultClientConfig())
	assert.Error(t, err)
}

func TestStatsAndMetrics(t *testing.T) {
	c := newClient(t, backends[0].pool(t), nil)
	ctx := context.Background()
	require.NoError(t, CreateAll(ctx, c, people(60)))
	_ = DeleteByID[Person](ctx, c, "")

	stats := c.Stats()
	assert.Equal(t, []string{personType}, stats.Types)
	assert.Equal(t, "go-json", stats.Codec)
	assert.Equal(t, int64(60), stats.Payloads.Count)
	assert.Positive(t, stats.Payloads.Average)
	assert.Zero(t, stats.Pool.InUse)

	var buf bytes.Buffer
	WriteMetrics(&buf)
	out := buf.String()
	assert.Contains(t, out, `objectis_ops_total{op="create_all"}`)
	assert.Contains(t, out, `objectis_op_errors_total{op="delete"}`)
	assert.Contains(t, out, `objectis_batch_dispatch_total{op="create_all"}`)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func BenchmarkCreateAll(b *testing.B) {
	pool := lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 0)
	c, err := NewClient(pool, common.DefaultClientConfig())
	require.NoError(b, err)
	defer c.Close()
	require.NoError(b, Register[Person](c))

	recs := people(1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := CreateAll(ctx, c, recs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkList(b *testing.B) {
	pool := lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 0)
	c, err := NewClient(pool, common.DefaultClientConfig())
	require.NoError(b, err)
	defer c.Close()
	require.NoError(b, Register[Person](c))

	ctx := context.Background()
	require.NoError(b, CreateAll(ctx, c, people(1000)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := List[Person](ctx, c); err != nil {
			b.Fatal(err)
		}
	}
}
