package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/libreria/reservation-service/internal/errs"
	"github.com/libreria/reservation-service/internal/handler"
	service_mocks "github.com/libreria/reservation-service/internal/handler/mocks"
	"github.com/libreria/reservation-service/internal/model"
	"github.com/libreria/reservation-service/internal/rpc"
	rpc_mocks "github.com/libreria/reservation-service/internal/rpc/mocks"
	"github.com/libreria/reservation-service/internal/service/auth"
)

func newTestHandler(t *testing.T) (*handler.Handler, *service_mocks.MockAuthService, *rpc_mocks.MockReservationService) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	authSvc := service_mocks.NewMockAuthService(c)
	reservationSvc := rpc_mocks.NewMockReservationService(c)
	log := zap.NewExample().Named("test")
	h := handler.New(authSvc, rpc.NewDispatcher(reservationSvc, log), log)
	return h, authSvc, reservationSvc
}

func TestHandler_Register(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockAuthService)
	type response struct {
		expectedCode int
		expectedBody string
	}

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"username":"alice","password":"pw"}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {
				r.EXPECT().
					Register(context.Background(), model.RegisterRequest{Username: "alice", Password: "pw"}).
					Return(model.User{ID: 1, Username: "alice"}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"User registered successfully"}`,
			},
		},
		{
			name: "err. duplicate username",
			body: `{"username":"alice","password":"pw"}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {
				r.EXPECT().
					Register(context.Background(), model.RegisterRequest{Username: "alice", Password: "pw"}).
					Return(model.User{}, errs.ErrUserExists)
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"error":"Error registering user"}`,
			},
		},
		{
			name:         "err. missing password",
			body:         `{"username":"alice"}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, authSvc, _ := newTestHandler(t)
			tt.mockBehavior(authSvc)
			e := h.NewRouter()

			r := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.JSONEq(t, tt.response.expectedBody, w.Body.String())
			}
		})
	}
}

func TestHandler_Login(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockAuthService)
	type response struct {
		expectedCode int
		expectedBody string
		wantCookie   bool
	}

	var tests = []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			body: `{"username":"alice","password":"pw"}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {
				r.EXPECT().
					Login(context.Background(), model.LoginRequest{Username: "alice", Password: "pw"}).
					Return(model.User{ID: 1, Username: "alice"}, "session-token", nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"message":"Login successful","user":{"id":1,"username":"alice"}}`,
				wantCookie:   true,
			},
		},
		{
			name: "err. wrong password",
			body: `{"username":"alice","password":"nope"}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {
				r.EXPECT().
					Login(context.Background(), model.LoginRequest{Username: "alice", Password: "nope"}).
					Return(model.User{}, "", errs.ErrInvalidCredentials)
			},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"Unauthorized"}`,
			},
		},
		{
			name:         "err. empty body",
			body:         `{}`,
			mockBehavior: func(r *service_mocks.MockAuthService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, authSvc, _ := newTestHandler(t)
			tt.mockBehavior(authSvc)
			e := h.NewRouter()

			r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.expectedBody != "" {
				require.JSONEq(t, tt.response.expectedBody, w.Body.String())
			}

			var sessionSet bool
			for _, cookie := range w.Result().Cookies() {
				if cookie.Name == "session" && cookie.Value != "" {
					sessionSet = true
					require.True(t, cookie.HttpOnly)
				}
			}
			require.Equal(t, tt.response.wantCookie, sessionSet)
		})
	}
}

func TestHandler_RPC(t *testing.T) {
	t.Parallel()
	type mockBehavior func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService)
	type response struct {
		expectedCode int
		expectedBody string
	}

	sessionClaims := &auth.Claims{UserID: 7, Username: "alice"}

	var tests = []struct {
		name         string
		body         string
		token        string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:         "err. no session",
			body:         `{"jsonrpc":"2.0","method":"getBooks","id":1}`,
			mockBehavior: func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService) {},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"No session"}`,
			},
		},
		{
			name:  "err. stale session",
			body:  `{"jsonrpc":"2.0","method":"getBooks","id":1}`,
			token: "expired-token",
			mockBehavior: func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService) {
				a.EXPECT().ParseSession("expired-token").Return(nil, errs.ErrInvalidCredentials)
			},
			response: response{
				expectedCode: http.StatusUnauthorized,
				expectedBody: `{"message":"Invalid session"}`,
			},
		},
		{
			name:  "getBooks ok",
			body:  `{"jsonrpc":"2.0","method":"getBooks","id":1}`,
			token: "session-token",
			mockBehavior: func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService) {
				a.EXPECT().ParseSession("session-token").Return(sessionClaims, nil)
				r.EXPECT().
					ListBooks(gomock.Any()).
					Return([]model.Book{
						{ID: 1, Title: "Ficciones", Author: "Jorge Luis Borges"},
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"result":[{"id":1,"title":"Ficciones","author":"Jorge Luis Borges","is_reserved":false,"reserved_by":null}],"id":1}`,
			},
		},
		{
			name:  "cancelReservation err. non-holder",
			body:  `{"jsonrpc":"2.0","method":"cancelReservation","params":{"bookId":1,"userId":8},"id":2}`,
			token: "session-token",
			mockBehavior: func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService) {
				a.EXPECT().ParseSession("session-token").Return(sessionClaims, nil)
				r.EXPECT().
					Cancel(gomock.Any(), int64(1), int64(8)).
					Return(errs.ErrUnauthorized)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"error":{"code":-32001,"message":"Unauthorized action"},"id":2}`,
			},
		},
		{
			name:  "err. unknown method",
			body:  `{"jsonrpc":"2.0","method":"burnBooks","id":3}`,
			token: "session-token",
			mockBehavior: func(a *service_mocks.MockAuthService, r *rpc_mocks.MockReservationService) {
				a.EXPECT().ParseSession("session-token").Return(sessionClaims, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"error":{"code":-32601,"message":"Method not found"},"id":3}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, authSvc, reservationSvc := newTestHandler(t)
			tt.mockBehavior(authSvc, reservationSvc)
			e := h.NewRouter()

			r := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			if tt.token != "" {
				r.AddCookie(&http.Cookie{Name: "session", Value: tt.token})
			}
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.JSONEq(t, tt.response.expectedBody, w.Body.String())
		})
	}
}

func TestHandler_RPCBearerToken(t *testing.T) {
	t.Parallel()
	h, authSvc, reservationSvc := newTestHandler(t)
	authSvc.EXPECT().ParseSession("bearer-token").Return(&auth.Claims{UserID: 7, Username: "alice"}, nil)
	reservationSvc.EXPECT().Reserve(gomock.Any(), int64(1), int64(7)).Return(nil)
	e := h.NewRouter()

	r := httptest.NewRequest(http.MethodPost, "/rpc",
		strings.NewReader(`{"jsonrpc":"2.0","method":"reserveBook","params":{"bookId":1,"userId":7},"id":1}`))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	r.Header.Set("Authorization", "Bearer bearer-token")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"result":{"message":"Book reserved successfully"},"id":1}`, w.Body.String())
}

func TestHandler_Health(t *testing.T) {
	t.Parallel()
	h, _, _ := newTestHandler(t)
	e := h.NewRouter()

	r := httptest.NewRequest(http.MethodGet, "/manage/health", http.NoBody)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}
