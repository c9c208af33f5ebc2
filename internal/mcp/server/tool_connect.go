package server

import (
	"context"

	"github.com/datasleuth/datasleuth/internal/source"
)

type ConnectInput struct {
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Path       string `json:"path"`
}

type ConnectOutput struct {
	Status     string   `json:"status"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Path       string   `json:"path"`
	Tables     []string `json:"tables"`
	TableCount int      `json:"table_count"`
}

type DisconnectInput struct {
	Name string `json:"name"`
}

type DisconnectOutput struct {
	Status string `json:"status"`
	Name   string `json:"name"`
}

type ListSourcesInput struct{}

type ListSourcesOutput struct {
	Sources      []source.Source `json:"sources"`
	TotalSources int             `json:"total_sources"`
	TotalTables  int             `json:"total_tables"`
}

func (s *Server) registerConnectTools() error {
	if err := addTool(s, "connect_source",
		"Connect a data source (sqlite, parquet, or csv) under a friendly name. "+
			"Parquet and CSV paths may use globs, e.g. './data/*.parquet'. "+
			"Returns the tables discovered in the source.",
		s.handleConnect); err != nil {
		return err
	}
	if err := addTool(s, "disconnect_source",
		"Disconnect a previously connected data source and drop its tables from the session.",
		s.handleDisconnect); err != nil {
		return err
	}
	return addTool(s, "list_sources",
		"List all connected data sources with their type, path, and tables.",
		s.handleListSources)
}

func (s *Server) handleConnect(ctx context.Context, input ConnectInput) (ConnectOutput, error) {
	src, err := s.cfg.Registry.Connect(ctx, input.Name, input.SourceType, input.Path)
	if err != nil {
		return ConnectOutput{}, toolError(err)
	}
	return ConnectOutput{
		Status:     "connected",
		Name:       src.Name,
		Type:       string(src.Kind),
		Path:       src.Path,
		Tables:     src.Tables,
		TableCount: len(src.Tables),
	}, nil
}

func (s *Server) handleDisconnect(ctx context.Context, input DisconnectInput) (DisconnectOutput, error) {
	if err := s.cfg.Registry.Disconnect(ctx, input.Name); err != nil {
		return DisconnectOutput{}, toolError(err)
	}
	return DisconnectOutput{Status: "disconnected", Name: input.Name}, nil
}

func (s *Server) handleListSources(ctx context.Context, _ ListSourcesInput) (ListSourcesOutput, error) {
	sources := s.cfg.Registry.List(ctx)
	totalTables := 0
	for _, src := range sources {
		totalTables += len(src.Tables)
	}
	return ListSourcesOutput{
		Sources:      sources,
		TotalSources: len(sources),
		TotalTables:  totalTables,
	}, nil
}
