package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"hullscope.io/internal/access"
	"hullscope.io/internal/audit"
	"hullscope.io/internal/fleet"
	"hullscope.io/internal/httpapi"
	"hullscope.io/internal/obs"
	"hullscope.io/internal/store/mem"
	"hullscope.io/internal/store/pg"
	"hullscope.io/internal/stream"
)

var (
	version = "0.3.0"
	commit  = ""
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		catalog    fleet.Service
		ownership  access.OwnershipStore
		dirStore   access.DirectoryStore
		shares     access.ShareStore
		grants     access.GrantStore
		requests   access.RequestStore
		auditStore access.AuditSink
		probe      httpapi.ReadyProbe
	)

	var pgStore *pg.Store
	if dsn := os.Getenv("HULLSCOPE_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		cat := pgStore.Catalog()
		catalog = cat
		ownership = cat
		dirStore = pgStore.Directory()
		shares = pgStore.Shares()
		grants = pgStore.Grants()
		requests = pgStore.Requests()
		auditStore = pgStore.Audit()
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		inmem := fleet.NewInMemory()
		store := mem.New(inmem)
		catalog = inmem
		ownership = inmem
		dirStore = store.Directory
		shares = store.Shares
		grants = store.Grants
		requests = store.Requests
		probe = httpapi.ReadyProbe{}
		log.Printf("HULLSCOPE_PG_DSN not set, using in-memory stores")
	}

	events := stream.New()
	sink := audit.NewSink(auditStore, events)

	eval, err := access.NewEvaluator(dirStore, ownership, shares, grants, requests)
	if err != nil {
		log.Fatalf("evaluator: %v", err)
	}
	directory, err := access.NewDirectory(dirStore, eval, sink)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}
	ledgers, err := access.NewLedgers(shares, grants, ownership, dirStore, sink)
	if err != nil {
		log.Fatalf("ledgers: %v", err)
	}
	workflow, err := access.NewWorkflow(requests, directory, dirStore, ledgers, shares, grants, ownership, eval, sink)
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		ReadyProbe: probe,
		Version:    version,
		Evaluator:  eval,
		Directory:  directory,
		Ledgers:    ledgers,
		Workflow:   workflow,
		Fleet:      catalog,
		Stream:     events,
		Audit:      sink,
	})

	httpAddr := os.Getenv("HULLSCOPE_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting hullscope-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcSrv *grpc.Server
	if grpcAddr := os.Getenv("HULLSCOPE_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcSrv, httpapi.NewGRPCServer(probe, version))
		log.Printf("Serving gRPC health on %s", grpcAddr)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
