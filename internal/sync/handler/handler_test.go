package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"attendsync/internal/sync/handler/mocks"
	"attendsync/internal/sync/models"
	dErrors "attendsync/pkg/domain-errors"
	"attendsync/pkg/testutil"
)

type SyncHandlerSuite struct {
	suite.Suite
	mockService *mocks.MockService
	router      http.Handler
	updatedAt   time.Time
}

func TestSyncHandlerSuite(t *testing.T) {
	suite.Run(t, new(SyncHandlerSuite))
}

func (s *SyncHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.mockService = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(s.mockService, logger).Register(r)
	s.router = r
	s.updatedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
}

func (s *SyncHandlerSuite) post(path, body string) *http.Request {
	return testutil.NewRequestWithBody(s.T(), http.MethodPost, path, body)
}

func (s *SyncHandlerSuite) TestUpsertAttendance() {
	s.Run("snake case aliases are accepted", func() {
		s.mockService.EXPECT().UpsertAttendance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e models.AttendanceEvent) (*models.Receipt, error) {
				s.Equal("a1", e.ID)
				s.Equal("u1", e.UserID)
				s.Equal("sess-9", e.CourseID)
				s.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), e.TsUTC)
				s.Equal(int64(4), e.Version)
				return &models.Receipt{ID: e.ID, Version: 5, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert",
			`{"id":"a1","user_id":"u1","session_id":"sess-9","ts_utc":"2024-03-01T08:00:00","version":4}`))

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[UpsertResponse](s.T(), rr)
		s.Equal("a1", resp.ID)
		s.Equal(int64(5), resp.Version)
		s.Equal(s.updatedAt, resp.UpdatedAt)
	})

	s.Run("camel case wins over snake case", func() {
		s.mockService.EXPECT().UpsertAttendance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e models.AttendanceEvent) (*models.Receipt, error) {
				s.Equal("camel", e.UserID)
				return &models.Receipt{ID: e.ID, Version: 2, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert",
			`{"id":"a1","userId":"camel","user_id":"snake","courseId":"c1"}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("offset timestamps are converted to UTC", func() {
		s.mockService.EXPECT().UpsertAttendance(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e models.AttendanceEvent) (*models.Receipt, error) {
				s.Equal(time.UTC, e.TsUTC.Location())
				s.Equal(time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC), e.TsUTC)
				return &models.Receipt{ID: e.ID, Version: 2, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert",
			`{"id":"a1","userId":"u1","courseId":"c1","tsUtc":"2024-03-01T08:00:00+02:00"}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("missing user id is rejected before the service", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert", `{"id":"a1","courseId":"c1"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unparseable timestamp is rejected", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert",
			`{"id":"a1","userId":"u1","courseId":"c1","tsUtc":"yesterday"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("epoch past the year 9999 is rejected", func() {
		for _, ts := range []string{"1e18", "1700000000000000000", "1e300"} {
			rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert",
				`{"id":"a1","userId":"u1","courseId":"c1","tsUtc":`+ts+`}`))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		}
	})
}

func (s *SyncHandlerSuite) TestUpsertUser() {
	s.Run("email is normalized by the service", func() {
		s.mockService.EXPECT().UpsertUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u models.User) (*models.Receipt, error) {
				s.Equal("Ada", u.DisplayName)
				return &models.Receipt{ID: u.ID, Version: 2, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert",
			`{"id":"u1","email":" A@B.com ","display_name":"Ada"}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("missing email", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `{"id":"u1","email":"   "}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("non integer version", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `{"id":"u1","email":"a@b.com","version":"abc"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("version without a successor is rejected before the service", func() {
		for _, v := range []string{"9223372036854775807", "9223372036854775808", `"9223372036854775807"`} {
			rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `{"id":"u1","email":"a@b.com","version":`+v+`}`))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		}
	})

	s.Run("largest accepted version reaches the service", func() {
		s.mockService.EXPECT().UpsertUser(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u models.User) (*models.Receipt, error) {
				s.Equal(int64(9223372036854775806), u.Version)
				return &models.Receipt{ID: u.ID, Version: u.Version + 1, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `{"id":"u1","email":"a@b.com","version":9223372036854775806}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("missing id", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `{"email":"a@b.com"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *SyncHandlerSuite) TestUpsertCourse() {
	s.Run("blank name", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/courses/upsert", `{"id":"c1","name":"   "}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("department alias", func() {
		s.mockService.EXPECT().UpsertCourse(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, c models.Course) (*models.Receipt, error) {
				s.Equal("d7", c.DepartmentID)
				return &models.Receipt{ID: c.ID, Version: 2, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/courses/upsert", `{"id":"c1","name":"Algebra","department_id":"d7"}`))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *SyncHandlerSuite) TestUpsertGeneric() {
	s.Run("data is passed through with plain numbers", func() {
		s.mockService.EXPECT().UpsertGeneric(gomock.Any(), "sessions", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, g models.GenericRecord) (*models.Receipt, error) {
				s.Equal(int64(3), g.Data["week"])
				s.Equal(1.5, g.Data["hours"])
				return &models.Receipt{ID: g.ID, Version: 2, UpdatedAt: s.updatedAt}, nil
			})

		rr := testutil.DoRequest(s.router, s.post("/sync/sessions/upsert", `{"id":"s1","data":{"week":3,"hours":1.5}}`))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("empty data", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/sessions/upsert", `{"id":"s1","data":{}}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("non object data", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/sessions/upsert", `{"id":"s1","data":[1,2]}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("unsupported collection never reaches the service", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/payments/upsert", `{"id":"p1","data":{"a":1}}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeUnsupportedCollection))

		rr = testutil.DoRequest(s.router, s.post("/sync/payments/upsert", `{"id":"p1"}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeUnsupportedCollection))
	})

	s.Run("typed route wins over the collection pattern", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/attendance/upsert", `{"id":"a1"}`))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *SyncHandlerSuite) TestDelete() {
	s.Run("returns deleted receipt", func() {
		s.mockService.EXPECT().Delete(gomock.Any(), "classes", "k1").
			Return(&models.DeleteReceipt{ID: "k1", Deleted: true}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/sync/classes/k1"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[DeleteResponse](s.T(), rr)
		s.Equal("k1", resp.ID)
		s.True(resp.Deleted)
	})

	s.Run("store failure hides the description", func() {
		s.mockService.EXPECT().Delete(gomock.Any(), "users", "u1").
			Return(nil, dErrors.Wrap(errors.New("pq: relation does not exist"), dErrors.CodeStoreWrite, "failed to delete users"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodDelete, "/sync/users/u1"))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		testutil.AssertOpaqueServerError(s.T(), rr, string(dErrors.CodeStoreWrite))
		s.NotContains(rr.Body.String(), "pq:")
	})
}

func (s *SyncHandlerSuite) TestMalformedBodies() {
	s.Run("empty body", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", ""))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("array body", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/users/upsert", `[1]`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("broken json", func() {
		rr := testutil.DoRequest(s.router, s.post("/sync/courses/upsert", `{"id":`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}
