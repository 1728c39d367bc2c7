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

/*
Package storage provides base.Persistence implementations that record
connection descriptors durably so a restarted registry can rebuild its pools.

# Backends

  - PostgresStorage: conn_info table with UUID ids (lib/pq)
  - SQLiteStorage: the same table in a local file (go-sqlite3)
  - RedisStorage: one hash, key -> descriptor JSON (go-redis)
  - MongoStorage: conn_info collection with the key as _id (mongo-driver)
  - CassandraStorage: conn_info table keyed by the registry key, saves use
    INSERT ... IF NOT EXISTS (gocql)
  - BlobStorage: one JSON object per key on S3, GCS or Azure Blob Storage

Open selects a backend from a URL:

	p, err := storage.Open(ctx, "redis://localhost:6379/0")
	if err != nil {
	    log.Fatal(err)
	}
	defer p.Close()

# Error mapping

Backends report failures as *base.ConnStoreError. A missing key on Load is a
NotFound, a key the backend cannot represent (a non-UUID on Postgres, a key
containing '/' on blob stores) is an Exception, and any I/O failure is
ConnFailed carrying the underlying message. Save refuses to overwrite an
existing entry; Update inserts when the entry is missing; Delete of a missing
entry succeeds.
*/
package storage
