package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/suite"

	"github.com/spektr-org/weekpi/engine"
)

type RedisStoreTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	store *RedisStore
}

func (s *RedisStoreTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.store = NewRedisStore(db, "weekpi:")
}

func (s *RedisStoreTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *RedisStoreTestSuite) TestGet_Hit() {
	s.mock.ExpectGet("weekpi:v1:abc").SetVal(`{"noData":true}`)

	data, err := s.store.Get(context.Background(), "v1:abc")
	s.NoError(err)
	s.Equal(`{"noData":true}`, string(data))
}

func (s *RedisStoreTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("weekpi:v1:abc").RedisNil()

	_, err := s.store.Get(context.Background(), "v1:abc")
	s.ErrorIs(err, ErrMiss)
}

func (s *RedisStoreTestSuite) TestGet_Error() {
	s.mock.ExpectGet("weekpi:v1:abc").SetErr(errors.New("connection reset"))

	_, err := s.store.Get(context.Background(), "v1:abc")
	s.Error(err)
	s.NotErrorIs(err, ErrMiss)
	s.Contains(err.Error(), "redis get")
}

func (s *RedisStoreTestSuite) TestSet() {
	value := []byte(`{"result":{}}`)
	s.mock.ExpectSet("weekpi:v1:abc", value, 10*time.Minute).SetVal("OK")

	s.NoError(s.store.Set(context.Background(), "v1:abc", value, 10*time.Minute))
}

func (s *RedisStoreTestSuite) TestDeleteByPrefix_Pages() {
	s.mock.ExpectScan(0, "weekpi:v1:*", 100).SetVal([]string{"weekpi:v1:a", "weekpi:v1:b"}, 7)
	s.mock.ExpectDel("weekpi:v1:a", "weekpi:v1:b").SetVal(2)
	s.mock.ExpectScan(7, "weekpi:v1:*", 100).SetVal([]string{}, 0)

	n, err := s.store.DeleteByPrefix(context.Background(), "v1:")
	s.NoError(err)
	s.Equal(int64(2), n)
}

func (s *RedisStoreTestSuite) TestDeleteByPrefix_ScanError() {
	s.mock.ExpectScan(0, "weekpi:v1:*", 100).SetErr(errors.New("timeout"))

	_, err := s.store.DeleteByPrefix(context.Background(), "v1:")
	s.ErrorContains(err, "redis scan")
}

func (s *RedisStoreTestSuite) TestKPICache_ServesFromRedis() {
	key := Key("v1", "kpi", engine.FilterState{}, engine.KPIOptions{})
	s.mock.ExpectGet("weekpi:" + key).SetVal(`{"result":{"mode":"current","totals":{"signedPremium":1500}}}`)

	c := New(s.store)
	res, hit, err := c.GetOrCompute(context.Background(), key, func(context.Context) (*engine.KPIResult, error) {
		s.Fail("compute must not run on a hit")
		return nil, nil
	})
	s.NoError(err)
	s.True(hit)
	s.Require().NotNil(res)
	s.Equal(1500.0, res.Totals.SignedPremium)
	s.Nil(res.LossRatio)
}

func TestRedisStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreTestSuite))
}
