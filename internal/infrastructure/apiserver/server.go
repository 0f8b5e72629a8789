package apiserver

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Item is the sample resource the demo API serves.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// Status is the freshness payload the polling demo reads.
type Status struct {
	Healthy   bool      `json:"healthy"`
	ItemCount int       `json:"itemCount"`
	Timestamp time.Time `json:"timestamp"`
}

// Server is a small in-process API speaking the runtime's response envelope.
// It stands in for the out-of-scope REST backend in the demo binary and the
// integration tests.
type Server struct {
	echo   *echo.Echo
	logger *logrus.Logger

	mu    sync.Mutex
	items []Item
	next  int
}

// New seeds the server with count items and registers its routes.
func New(count int, logger *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, logger: logger, next: count + 1}
	for i := 1; i <= count; i++ {
		s.items = append(s.items, Item{ID: strconv.Itoa(i), Name: fmt.Sprintf("item-%d", i)})
	}

	e.GET("/items", s.listItems)
	e.GET("/items/:id", s.getItem)
	e.POST("/items", s.createItem)
	e.PUT("/items/:id", s.updateItem)
	e.DELETE("/items/:id", s.deleteItem)
	e.GET("/search", s.search)
	e.GET("/status", s.status)
	e.POST("/uploads", s.upload)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Echo exposes the underlying engine for httptest and Start.
func (s *Server) Echo() *echo.Echo { return s.echo }

// Start serves on addr; blocks like echo.Start.
func (s *Server) Start(addr string) error { return s.echo.Start(addr) }

func (s *Server) listItems(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	s.mu.Lock()
	all := append([]Item(nil), s.items...)
	s.mu.Unlock()

	total := len(all)
	totalPages := (total + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return c.JSON(http.StatusOK, ports.Response[[]Item]{
		Data:    all[start:end],
		Success: true,
		Pagination: &ports.PaginationInfo{
			Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages,
		},
	})
}

func (s *Server) getItem(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return c.JSON(http.StatusOK, ports.Response[Item]{Data: item, Success: true})
		}
	}
	return c.JSON(http.StatusNotFound, ports.Response[any]{Success: false, Message: "item not found"})
}

func (s *Server) createItem(c echo.Context) error {
	var in Item
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ports.Response[any]{Success: false, Message: "invalid body"})
	}
	s.mu.Lock()
	in.ID = strconv.Itoa(s.next)
	s.next++
	s.items = append([]Item{in}, s.items...)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"id": in.ID, "name": in.Name}).Debug("item created")
	}
	return c.JSON(http.StatusCreated, ports.Response[Item]{Data: in, Success: true})
}

func (s *Server) updateItem(c echo.Context) error {
	var in Item
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, ports.Response[any]{Success: false, Message: "invalid body"})
	}
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			in.ID = id
			s.items[i] = in
			return c.JSON(http.StatusOK, ports.Response[Item]{Data: in, Success: true})
		}
	}
	return c.JSON(http.StatusNotFound, ports.Response[any]{Success: false, Message: "item not found"})
}

func (s *Server) deleteItem(c echo.Context) error {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return c.JSON(http.StatusOK, ports.Response[any]{Success: true})
		}
	}
	return c.JSON(http.StatusNotFound, ports.Response[any]{Success: false, Message: "item not found"})
}

func (s *Server) search(c echo.Context) error {
	q := strings.ToLower(c.QueryParam("q"))
	s.mu.Lock()
	var matches []Item
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Name), q) {
			matches = append(matches, item)
		}
	}
	s.mu.Unlock()
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	return c.JSON(http.StatusOK, ports.Response[[]Item]{
		Data:       matches,
		Success:    true,
		Pagination: &ports.PaginationInfo{Page: 1, PageSize: len(matches), TotalItems: len(matches), TotalPages: 1},
	})
}

func (s *Server) status(c echo.Context) error {
	s.mu.Lock()
	count := len(s.items)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, ports.Response[Status]{
		Data:    Status{Healthy: true, ItemCount: count, Timestamp: time.Now()},
		Success: true,
	})
}

func (s *Server) upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ports.Response[any]{Success: false, Message: "missing file part"})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ports.Response[any]{Success: false, Message: "unreadable file part"})
	}
	defer src.Close()
	n, err := io.Copy(io.Discard, src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ports.Response[any]{Success: false, Message: "truncated upload"})
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{"file": file.Filename, "bytes": n}).Debug("upload received")
	}
	return c.JSON(http.StatusOK, ports.Response[map[string]any]{
		Data:    map[string]any{"filename": file.Filename, "size": n},
		Success: true,
	})
}
