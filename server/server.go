// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"dynconn/connectors/registry"
	"dynconn/shared/logger"
)

// apiVersion describes one mounted generation of the connection API
type apiVersion struct {
	prefix string
	// strict answers registry errors with 400 and writes bare bodies; the
	// earlier generation always answers 200 with an {"Ok"|"Err": ...} envelope
	strict bool
}

var (
	apiV1 = apiVersion{prefix: "/api/v1/dyn", strict: false}
	apiV2 = apiVersion{prefix: "/api/v2/dyn", strict: true}
)

// Options configures a Server
type Options struct {
	RequestTimeout time.Duration
	JWTSecret      string
	CORSOrigins    []string
	Logger         *logger.Logger
}

// Server exposes a LockedStore over HTTP
type Server struct {
	store          *registry.LockedStore
	log            *logger.Logger
	requestTimeout time.Duration
	jwtSecret      []byte
	corsOrigins    []string
}

// New creates a Server. An empty JWTSecret disables authentication.
func New(store *registry.LockedStore, opts Options) *Server {
	lg := opts.Logger
	if lg == nil {
		lg = logger.New("dynconn-server")
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		store:          store,
		log:            lg,
		requestTimeout: timeout,
		corsOrigins:    origins,
	}
	if opts.JWTSecret != "" {
		s.jwtSecret = []byte(opts.JWTSecret)
	}
	return s
}

// Handler builds the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware, s.recoverMiddleware, s.requestIDMiddleware)

	// Health check
	r.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Prometheus native format
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	for _, v := range []apiVersion{apiV1, apiV2} {
		api := r.PathPrefix(v.prefix).Subrouter()
		api.Use(s.authMiddleware)
		s.registerRoutes(api, v)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: false,
	})
	return c.Handler(r)
}

func (s *Server) registerRoutes(api *mux.Router, v apiVersion) {
	api.HandleFunc("/", s.indexHandler).Methods("GET")
	api.HandleFunc("/check_connection", s.checkConnectionHandler(v)).Methods("POST")

	// Fixed paths go before /conn/{key}
	api.HandleFunc("/conn/keys", s.showKeysHandler(v)).Methods("GET")
	api.HandleFunc("/conn/list", s.listConnHandler(v)).Methods("GET")
	api.HandleFunc("/conn/keyed", s.createKeyedHandler(v)).Methods("POST")
	api.HandleFunc("/conn/{key}", s.getConnHandler(v)).Methods("GET")

	api.HandleFunc("/conn", s.showInfoHandler(v)).Methods("GET")
	api.HandleFunc("/conn", s.createHandler(v)).Methods("POST")
	api.HandleFunc("/conn", s.updateHandler(v)).Methods("PUT")
	api.HandleFunc("/conn", s.deleteHandler(v)).Methods("DELETE")
}
