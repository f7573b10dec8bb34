package ofd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/abeknur/ofd-check/internal/receipt"
)

// ktCheckJSON renders the structured-JSON operator's envelope with a
// configurable operation code and fiscal id.
func ktCheckJSON(operationType, fiscalID string) string {
	return fmt.Sprintf(`{
		"orgTitle": "ТОО \"Магнум Кэш энд Керри\"",
		"orgId": "990640004593",
		"retailPlaceAddress": "г. Алматы, пр. Абая 109",
		"kkmSerialNumber": "SWK00032969",
		"kkmFnsId": "2403912",
		"ticket": {
			"fiscalId": %s,
			"operationType": %s,
			"transactionDate": "2025-02-02T18:32:15",
			"items": [
				{
					"commodity": {
						"name": "*Молоко* Отборное 3,2%%",
						"quantity": 2,
						"price": 450.5,
						"sum": 901,
						"barcode": "4870001234567",
						"measureUnitCode": "796",
						"taxes": [{"sum": 96.54, "layout": {"rate": 12}}]
					}
				},
				{"commodity": null}
			],
			"payments": [{"paymentType": "CARD", "sum": 901}],
			"totalSum": 901,
			"takenSum": 901,
			"changeSum": 0
		},
		"taxes": [{"rate": 12, "sum": 96.54}]
	}`, fiscalID, operationType)
}

var jsonHeader = http.Header{"Content-Type": []string{"application/json"}}

var _ = Describe("Kazakhtelecom", func() {
	var (
		server   *ghttp.Server
		handler  *Kazakhtelecom
		rec      *receipt.Receipt
		fetchErr error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		handler = NewKazakhtelecomWithBase(DefaultTimeout, server.URL()+"/api/tickets")
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		u, err := url.Parse(server.URL() + "/ticket/2072868227")
		Expect(err).NotTo(HaveOccurred())
		rec, fetchErr = handler.FetchCheck(context.Background(), u)
	})

	When("the operator redirects to a well-formed check", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/ticket/2072868227"),
					ghttp.RespondWith(http.StatusFound, nil, http.Header{
						"Location": []string{"/540123?registrationNumber=2403912"},
					}),
				),
				ghttp.CombineHandlers(
					ghttp.VerifyRequest("GET", "/api/tickets/540123", "registrationNumber=2403912"),
					ghttp.RespondWith(http.StatusOK, ktCheckJSON("2", `"2072868227"`), jsonHeader),
				),
			)
		})

		It("should not return an error", func() {
			Expect(fetchErr).NotTo(HaveOccurred())
		})

		It("should fill the company header", func() {
			Expect(rec.CompanyName).To(Equal(`ТОО "Магнум Кэш энд Керри"`))
			Expect(rec.TaxID).To(Equal("990640004593"))
			Expect(rec.CompanyAddress).To(Equal("г. Алматы, пр. Абая 109"))
			Expect(rec.SerialNumber).To(Equal("SWK00032969"))
			Expect(rec.RegistrationID).To(Equal("2403912"))
		})

		It("should fill the provenance fields", func() {
			Expect(rec.FiscalSign).To(Equal("2072868227"))
			Expect(rec.Operator).To(Equal(receipt.OperatorKazakhtelecom))
			Expect(rec.Operation).To(Equal(receipt.OperationSell))
			Expect(rec.DateTime.Format("2006-01-02 15:04:05")).To(Equal("2025-02-02 18:32:15"))
		})

		It("should skip items without a commodity and clean the name", func() {
			Expect(rec.Items).To(HaveLen(1))
			item := rec.Items[0]
			Expect(item.Name).To(Equal("Молоко Отборное 3,2%"))
			Expect(item.Barcode).To(Equal("4870001234567"))
			Expect(item.Unit).To(Equal(receipt.UnitPiece))
			Expect(item.Count.String()).To(Equal("2"))
			Expect(item.Price.String()).To(Equal("450.5"))
			Expect(item.Sum.String()).To(Equal("901"))
			Expect(item.TaxType).To(Equal("12"))
			Expect(item.TaxSum.String()).To(Equal("96.54"))
		})

		It("should fill the settlement fields", func() {
			Expect(rec.Payments).To(HaveLen(1))
			Expect(rec.Payments[0].Type).To(Equal(receipt.PaymentCard))
			Expect(rec.Payments[0].Sum.String()).To(Equal("901"))
			Expect(rec.Taken.String()).To(Equal("901"))
			Expect(rec.Change.String()).To(Equal("0"))
			Expect(rec.TotalSum.String()).To(Equal("901"))
			Expect(rec.TaxType).To(Equal("12"))
			Expect(rec.TaxSum.String()).To(Equal("96.54"))
		})

		It("should keep the scanned URL", func() {
			Expect(rec.URL).To(Equal(server.URL() + "/ticket/2072868227"))
		})
	})

	When("the operator answers without a redirect", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, ktCheckJSON("2", `"2072868227"`), jsonHeader),
			)
		})

		It("should parse the body directly", func() {
			Expect(fetchErr).NotTo(HaveOccurred())
			Expect(rec.FiscalSign).To(Equal("2072868227"))
		})
	})

	When("the check has an unknown operation code", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, ktCheckJSON("9", `"2072868227"`), jsonHeader),
			)
		})

		It("returns a semantic error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindSemantic))
		})
	})

	When("the check is missing its fiscal id", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, ktCheckJSON("2", `""`), jsonHeader),
			)
		})

		It("returns a structural error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindStructural))
		})
	})

	When("the check is missing its retail place address", func() {
		BeforeEach(func() {
			page := strings.ReplaceAll(ktCheckJSON("2", `"2072868227"`),
				`"retailPlaceAddress": "г. Алматы, пр. Абая 109"`, `"retailPlaceAddress": ""`)
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, page, jsonHeader),
			)
		})

		It("returns a structural error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindStructural))
		})
	})

	When("the check is missing its register serial number", func() {
		BeforeEach(func() {
			page := strings.ReplaceAll(ktCheckJSON("2", `"2072868227"`),
				`"kkmSerialNumber": "SWK00032969"`, `"kkmSerialNumber": ""`)
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, page, jsonHeader),
			)
		})

		It("returns a structural error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindStructural))
		})
	})

	When("a payment carries no sum", func() {
		BeforeEach(func() {
			page := strings.ReplaceAll(ktCheckJSON("2", `"2072868227"`),
				`"payments": [{"paymentType": "CARD", "sum": 901}]`,
				`"payments": [{"paymentType": "CARD"}]`)
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, page, jsonHeader),
			)
		})

		It("returns a structural error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindStructural))
		})
	})

	When("the operator answers with an HTML error page", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusOK, "<html>check not found</html>", http.Header{
					"Content-Type": []string{"text/html; charset=utf-8"},
				}),
			)
		})

		It("returns a transport error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindTransport))
		})
	})

	When("the operator answers with a server error", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusInternalServerError, nil),
			)
		})

		It("returns a transport error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindTransport))
		})
	})

	When("the redirect carries no Location header", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusFound, nil),
			)
		})

		It("returns a transport error", func() {
			kind, ok := KindOf(fetchErr)
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(KindTransport))
		})
	})
})
