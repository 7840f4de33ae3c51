package cloudinit

import (
	"net"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
)

// router serves exactly the three seed documents from dir and nothing
// else.
func router(dir string) *mux.Router {
	r := mux.NewRouter()
	for _, name := range []string{UserDataFile, MetaDataFile, VendorDataFile} {
		path := filepath.Join(dir, name)
		r.HandleFunc("/"+name, func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, path)
		}).Methods(http.MethodGet)
	}
	return r
}

// Serve runs the seed file server in the current process, blocking
// until the listener fails or the process is signalled.
func Serve(dir string, port int) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Handler: router(dir),
	}
	return srv.ListenAndServe()
}
