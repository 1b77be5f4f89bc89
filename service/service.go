// Package service exposes a node's chain state over a read-only debug HTTP
// API, the same role the teacher's service.Service plays for a hashgraph
// node, rebuilt here on gorilla/mux instead of the bare DefaultServeMux so
// routes like /block/{height} can take a typed path variable.
package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/xxnithicxx/Consensus-Lab-Project/chain"
	"github.com/xxnithicxx/Consensus-Lab-Project/peers"
)

// Service serves a single node's /stats, /tip, /block/{height} and /peers
// endpoints for external inspection during a run.
type Service struct {
	sync.Mutex

	bindAddress string
	store       *chain.Store
	peerSet     *peers.PeerSet
	logger      *logrus.Entry
	router      *mux.Router
}

// NewService builds a Service bound to store and peerSet; call Serve to
// start listening.
func NewService(bindAddress string, store *chain.Store, peerSet *peers.PeerSet, logger *logrus.Entry) *Service {
	s := &Service{
		bindAddress: bindAddress,
		store:       store,
		peerSet:     peerSet,
		logger:      logger,
		router:      mux.NewRouter(),
	}
	s.registerHandlers()
	return s
}

func (s *Service) registerHandlers() {
	s.logger.Debug("registering debug API handlers")
	s.router.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.router.HandleFunc("/tip", s.makeHandler(s.GetTip))
	s.router.HandleFunc("/block/{height}", s.makeHandler(s.GetBlock))
	s.router.HandleFunc("/peers", s.makeHandler(s.GetPeers))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		fn(w, r)
	}
}

// Serve blocks, listening on bindAddress. Run it in its own goroutine.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("serving debug API")
	if err := http.ListenAndServe(s.bindAddress, s.router); err != nil {
		s.logger.WithError(err).Error("debug API server stopped")
	}
}

// GetStats reports the store's current read-only snapshot.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.store.Snapshot())
}

// GetTip reports the current best tip's full chain, genesis first.
func (s *Service) GetTip(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.ChainTo(s.store.CurrentTip())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// GetBlock returns the block finalised at the requested height, if any.
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := mux.Vars(r)["height"]
	height, err := strconv.Atoi(param)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, ok := s.store.FinalizedAt(height)
	if !ok {
		http.Error(w, "not finalized at that height", http.StatusNotFound)
		return
	}
	block, ok := s.store.GetBlock(hash)
	if !ok {
		http.Error(w, "block indexed by height but not by hash", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(block)
}

// GetPeers lists the cluster's fixed membership.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.peerSet.Peers)
}
