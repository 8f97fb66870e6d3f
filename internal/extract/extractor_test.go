package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcabrera/revolico-scraper/internal/models"
)

const detailURL = "https://www.revolico.com/item/smart-tv-samsung-43-55123456"

func detailPage() string {
	return `<html>
<head><title>Smart TV Samsung 43 en La Habana</title></head>
<body>
<nav aria-label="breadcrumb">Inicio > Compra y venta > Electrónica</nav>
<h1 data-cy="adTitle">Smart TV Samsung 43 pulgadas</h1>
<div data-cy="adPrice">8.000 CUP</div>
<div data-cy="adDescription">Televisor nuevo en caja, garantía de 6 meses. Entrega a domicilio en toda la ciudad sin costo adicional.
Teléfono: 53512345 llamar en horario laboral</div>
<a data-cy="adUser" href="/user/7"><span data-cy="userFullname">Carlos Pérez</span></a>
<div class="avatar" data-cy="user-avatar"><img src="https://lh3.googleusercontent.com/a/photo=s96-c" alt="Avatar"></div>
<div data-cy="adLocation">Playa, La Habana</div>
<div data-cy="adImages">
  <div class="swiper-slide">
    <div class="swiper-zoom-container"><img src="https://pic.revolico.com/pics/aabb01_high.jpg"></div>
  </div>
  <div class="swiper-slide">
    <picture>
      <source srcset="https://pic.revolico.com/pics/aabb02_detail_desktop.jpg 1x, https://pic.revolico.com/pics/aabb02_thumb.jpg 0.5x">
      <img src="https://pic.revolico.com/pics/aabb02_thumb.jpg">
    </picture>
  </div>
  <div class="swiper-slide">
    <img src="https://pic.revolico.com/pics/aabb03_detail_mobile.jpg">
  </div>
</div>
<div data-cy="adUser">Contactar: +53 5351 2345</div>
</body></html>`
}

func TestExtractFullListing(t *testing.T) {
	x := New(nil)
	listing := x.Extract(detailURL, detailPage())

	assert.Equal(t, "55123456", listing.ExternalID)
	assert.Equal(t, "Smart TV Samsung 43 pulgadas", listing.Title)

	require.NotNil(t, listing.Price)
	assert.InDelta(t, 8000.0, *listing.Price, 0.001)
	assert.Equal(t, "CUP", listing.Currency)

	require.NotNil(t, listing.SellerName)
	assert.Equal(t, "Carlos Pérez", *listing.SellerName)

	require.NotNil(t, listing.ProfilePictureURL)
	assert.Equal(t, "https://lh3.googleusercontent.com/a/photo=s400-c", *listing.ProfilePictureURL)

	assert.Equal(t, "Electrónica", listing.Category)
	assert.Equal(t, "Playa, La Habana", listing.Location)
	assert.Equal(t, models.ConditionNew, listing.Condition)
	assert.Contains(t, listing.PhoneNumbers, "+5353512345")
}

func TestExtractDescriptionFooterCut(t *testing.T) {
	x := New(nil)
	listing := x.Extract(detailURL, detailPage())

	assert.Contains(t, listing.Description, "garantía de 6 meses")
	assert.NotContains(t, listing.Description, "Teléfono")
	assert.NotContains(t, listing.Description, "llamar en horario")
}

func TestTrimContactFooterKeepsShortDescriptions(t *testing.T) {
	// A description that opens with a contact word stays whole.
	text := "Teléfono Samsung original nuevo"
	assert.Equal(t, text, trimContactFooter(text))
}

func TestExtractSellerFromNextData(t *testing.T) {
	page := `<html><body>
<h1 data-cy="adTitle">Bicicleta</h1>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"__APOLLO_STATE__":{
  "ROOT_QUERY":{"x":1},
  "AdType:99887":{"id":"99887","name":"María García","price":"120"}
}}}}
</script>
</body></html>`

	x := New(nil)
	listing := x.Extract("https://www.revolico.com/item/bicicleta-99887", page)

	require.NotNil(t, listing.SellerName)
	assert.Equal(t, "María García", *listing.SellerName)
}

func TestExtractSellerRejectsChromeAndPrices(t *testing.T) {
	x := New(nil)

	for _, tc := range []struct {
		name string
		text string
	}{
		{"follow button", "Seguir"},
		{"price with sign", "$100"},
		{"cup prefix", "CUP 8.000"},
		{"usd prefix", "usd 50"},
		{"bare digits", "53512345"},
		{"too short", "ab"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page := `<html><body><p data-cy="userFullname">` + tc.text + `</p></body></html>`
			listing := x.Extract(detailURL, page)
			assert.Nil(t, listing.SellerName)
		})
	}
}

func TestExtractSellerInvalidNameFallsBackToNextData(t *testing.T) {
	page := `<html><body>
<p data-cy="userFullname">Seguir</p>
<script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"__APOLLO_STATE__":{
  "AdType:99887":{"id":"99887","name":"María García"}
}}}}
</script>
</body></html>`

	x := New(nil)
	listing := x.Extract("https://www.revolico.com/item/bicicleta-99887", page)

	require.NotNil(t, listing.SellerName)
	assert.Equal(t, "María García", *listing.SellerName)
}

func TestExtractRevolicoAvatarKeptAsIs(t *testing.T) {
	page := `<html><body>
<div class="avatar" data-cy="user-avatar"><img src="https://pic.revolico.com/users/abc_thumb.jpg?token=xyz"></div>
</body></html>`

	x := New(nil)
	listing := x.Extract(detailURL, page)

	require.NotNil(t, listing.ProfilePictureURL)
	assert.Equal(t, "https://pic.revolico.com/users/abc_thumb.jpg?token=xyz", *listing.ProfilePictureURL)
}

func TestExtractImages(t *testing.T) {
	x := New(nil)
	listing := x.Extract(detailURL, detailPage())

	require.Len(t, listing.ImageURLs, 3)
	assert.Equal(t, "https://pic.revolico.com/pics/aabb01_high.jpg", listing.ImageURLs[0])
	// Desktop and mobile variants are normalized to the high variant.
	assert.Equal(t, "https://pic.revolico.com/pics/aabb02_high.jpg", listing.ImageURLs[1])
	assert.Equal(t, "https://pic.revolico.com/pics/aabb03_high.jpg", listing.ImageURLs[2])
}

func TestExtractImagesCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><div data-cy="adImages">`)
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<div class="swiper-slide"><div class="swiper-zoom-container"><img src="https://pic.revolico.com/pics/aa%02d_high.jpg"></div></div>`, i)
	}
	b.WriteString(`</div></body></html>`)

	x := New(nil)
	listing := x.Extract(detailURL, b.String())
	assert.Len(t, listing.ImageURLs, 10)
}

func TestExtractGracefulDegradation(t *testing.T) {
	x := New(nil)
	listing := x.Extract("https://www.revolico.com/item/cosa-777", "<html><body>nada que ver</body></html>")

	assert.Equal(t, "777", listing.ExternalID)
	assert.Empty(t, listing.Title)
	assert.Nil(t, listing.Price)
	assert.Equal(t, "USD", listing.Currency)
	assert.Nil(t, listing.SellerName)
	assert.Empty(t, listing.ImageURLs)
	assert.Equal(t, models.ConditionUsed, listing.Condition)
}

func TestExtractLocationProvinceFallback(t *testing.T) {
	page := `<html><head><title>Venta de casa en Matanzas</title></head><body><h1 data-cy="adTitle">Casa</h1></body></html>`

	x := New(nil)
	listing := x.Extract("https://www.revolico.com/item/casa-5", page)

	assert.Equal(t, "Matanzas", listing.Location)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		text     string
		want     float64
		currency string
	}{
		{"8.000 CUP", 8000, "CUP"},
		{"400 USD", 400, "USD"},
		{"1.200,50 USD", 1200.50, "USD"},
		{"1,300.50 USD", 1300.50, "USD"},
		{"1,300 EUR", 1300, "EUR"},
		{"250 mlc", 250, "MLC"},
		{"Precio: 95.000 CUP negociable", 95000, "CUP"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			price, currency := ParsePrice(tt.text)
			require.NotNil(t, price)
			assert.InDelta(t, tt.want, *price, 0.001)
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestParsePriceNoMatch(t *testing.T) {
	for _, text := range []string{"", "precio a convenir", "llamar para precio"} {
		price, currency := ParsePrice(text)
		assert.Nil(t, price, text)
		assert.Equal(t, "USD", currency)
	}
}

func TestExtractCandidates(t *testing.T) {
	page := `<html><body>
<a href="/item/tv-samsung-111">TV Samsung</a>
<a href="https://www.revolico.com/item/moto-222">Moto</a>
<a href="/item/publish">Publicar anuncio</a>
<a href="/item/tv-samsung-111">TV Samsung otra vez</a>
<a href="/about">Quiénes somos</a>
</body></html>`

	candidates := ExtractCandidates(page, "https://www.revolico.com")
	require.Len(t, candidates, 2)
	assert.Equal(t, "https://www.revolico.com/item/tv-samsung-111", candidates[0].URL)
	assert.Equal(t, "TV Samsung", candidates[0].Title)
	assert.Equal(t, "https://www.revolico.com/item/moto-222", candidates[1].URL)
}

func TestExtractCandidatesGenericFallback(t *testing.T) {
	page := `<html><body>
<a href="/anuncio/venta-carro-33">Carro en venta</a>
<a href="/anuncio/general">Todos los anuncios</a>
</body></html>`

	candidates := ExtractCandidates(page, "https://cuba.clasificados.com")
	require.Len(t, candidates, 1)
	assert.Equal(t, "https://cuba.clasificados.com/anuncio/venta-carro-33", candidates[0].URL)
}

func TestExtractCandidatesEmpty(t *testing.T) {
	assert.Empty(t, ExtractCandidates("<html><body><p>sin enlaces</p></body></html>", "https://www.revolico.com"))
}
