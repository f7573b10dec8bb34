package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/abeknur/ofd-check/internal/ofd"
)

var _ = Describe("Server", func() {
	var (
		db      *mockDB
		fetcher *mockFetcher
		server  *Server
		basic   BasicAuth
		resp    *httptest.ResponseRecorder
		req     *http.Request
	)

	BeforeEach(func() {
		db = newMockDB()
		fetched := testEntry("2072868227").Receipt
		fetcher = &mockFetcher{rec: &fetched}
		basic = BasicAuth{}
	})

	JustBeforeEach(func() {
		timeSrc := &mockTimeSource{now: time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)}
		service := NewServiceWithDeps(db, fetcher, timeSrc)
		server = NewServer(service, basic)
		resp = httptest.NewRecorder()
		server.ServeHTTP(resp, req)
	})

	scanRequest := func(rawURL string) *http.Request {
		body, err := json.Marshal(map[string]string{"url": rawURL})
		Expect(err).NotTo(HaveOccurred())
		r := httptest.NewRequest("POST", "/api/checks", bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return r
	}

	Describe("POST /api/checks", func() {
		BeforeEach(func() {
			req = scanRequest("https://consumer.oofd.kz/ticket/2072868227")
		})

		When("the scan succeeds", func() {
			It("responds 201 with the stored entry", func() {
				Expect(resp.Code).To(Equal(http.StatusCreated))

				var entry StoredCheck
				Expect(json.Unmarshal(resp.Body.Bytes(), &entry)).To(Succeed())
				Expect(entry.Receipt.FiscalSign).To(Equal("2072868227"))
			})

			It("stores the check", func() {
				Expect(db.checks).To(HaveKey("2072868227"))
			})
		})

		When("the check was already scanned", func() {
			BeforeEach(func() {
				Expect(db.SaveCheck(testEntry("2072868227"))).NotTo(HaveOccurred())
			})

			It("responds 409", func() {
				Expect(resp.Code).To(Equal(http.StatusConflict))
			})
		})

		When("no handler knows the URL's host", func() {
			BeforeEach(func() {
				fetcher.fetchErr = &ofd.Error{Kind: ofd.KindRouting, Msg: "unsupported operator: ofd.example.com"}
			})

			It("responds 422", func() {
				Expect(resp.Code).To(Equal(http.StatusUnprocessableEntity))
			})
		})

		When("the operator payload cannot be parsed", func() {
			BeforeEach(func() {
				fetcher.fetchErr = &ofd.Error{Kind: ofd.KindStructural, Msg: "ticket object missing"}
			})

			It("responds 502", func() {
				Expect(resp.Code).To(Equal(http.StatusBadGateway))
			})

			It("carries the error message in the JSON body", func() {
				var body map[string]string
				Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
				Expect(body["error"]).To(ContainSubstring("ticket object missing"))
			})
		})

		When("the request body is not JSON", func() {
			BeforeEach(func() {
				req = httptest.NewRequest("POST", "/api/checks", bytes.NewReader([]byte("not json")))
			})

			It("responds 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
			})
		})

		When("the request body has no URL", func() {
			BeforeEach(func() {
				req = scanRequest("")
			})

			It("responds 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
			})
		})
	})

	Describe("GET /api/checks", func() {
		BeforeEach(func() {
			req = httptest.NewRequest("GET", "/api/checks", nil)
		})

		When("checks are stored", func() {
			BeforeEach(func() {
				Expect(db.SaveCheck(testEntry("1111111111"))).NotTo(HaveOccurred())
				Expect(db.SaveCheck(testEntry("2222222222"))).NotTo(HaveOccurred())
			})

			It("responds 200 with all of them", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))

				var entries []*StoredCheck
				Expect(json.Unmarshal(resp.Body.Bytes(), &entries)).To(Succeed())
				Expect(entries).To(HaveLen(2))
			})
		})

		When("nothing is stored", func() {
			It("responds 200 with an empty array", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))
				Expect(resp.Body.String()).To(MatchJSON("[]"))
			})
		})
	})

	Describe("GET /api/checks/{fiscalSign}", func() {
		BeforeEach(func() {
			req = httptest.NewRequest("GET", "/api/checks/2072868227", nil)
		})

		When("the check exists", func() {
			BeforeEach(func() {
				Expect(db.SaveCheck(testEntry("2072868227"))).NotTo(HaveOccurred())
			})

			It("responds 200 with the entry", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))

				var entry StoredCheck
				Expect(json.Unmarshal(resp.Body.Bytes(), &entry)).To(Succeed())
				Expect(entry.Receipt.FiscalSign).To(Equal("2072868227"))
			})
		})

		When("the check does not exist", func() {
			It("responds 404", func() {
				Expect(resp.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("DELETE /api/checks/{fiscalSign}", func() {
		BeforeEach(func() {
			req = httptest.NewRequest("DELETE", "/api/checks/2072868227", nil)
		})

		When("the check exists", func() {
			BeforeEach(func() {
				Expect(db.SaveCheck(testEntry("2072868227"))).NotTo(HaveOccurred())
			})

			It("responds 204 and removes it", func() {
				Expect(resp.Code).To(Equal(http.StatusNoContent))
				Expect(db.checks).To(BeEmpty())
			})
		})

		When("the check does not exist", func() {
			It("responds 404", func() {
				Expect(resp.Code).To(Equal(http.StatusNotFound))
			})
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			basic = BasicAuth{Username: "user", Password: "secret"}
			req = httptest.NewRequest("GET", "/api/checks", nil)
		})

		When("no credentials are sent", func() {
			It("responds 401 with a challenge", func() {
				Expect(resp.Code).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("the wrong credentials are sent", func() {
			BeforeEach(func() {
				req.SetBasicAuth("user", "wrong")
			})

			It("responds 401", func() {
				Expect(resp.Code).To(Equal(http.StatusUnauthorized))
			})
		})

		When("the right credentials are sent", func() {
			BeforeEach(func() {
				req.SetBasicAuth("user", "secret")
			})

			It("lets the request through", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))
			})
		})
	})
})

var _ = Describe("scanStatus", func() {
	It("maps the duplicate sentinel to 409", func() {
		Expect(scanStatus(ErrDuplicate)).To(Equal(http.StatusConflict))
	})

	It("maps a wrapped duplicate to 409", func() {
		Expect(scanStatus(fmt.Errorf("saving check: %w", ErrDuplicate))).To(Equal(http.StatusConflict))
	})

	It("maps routing failures to 422", func() {
		Expect(scanStatus(&ofd.Error{Kind: ofd.KindRouting})).To(Equal(http.StatusUnprocessableEntity))
	})

	It("maps operator failures to 502", func() {
		Expect(scanStatus(&ofd.Error{Kind: ofd.KindTransport})).To(Equal(http.StatusBadGateway))
		Expect(scanStatus(&ofd.Error{Kind: ofd.KindStructural})).To(Equal(http.StatusBadGateway))
		Expect(scanStatus(&ofd.Error{Kind: ofd.KindSemantic})).To(Equal(http.StatusBadGateway))
	})

	It("maps anything else to 500", func() {
		Expect(scanStatus(fmt.Errorf("db is closed"))).To(Equal(http.StatusInternalServerError))
	})
})
