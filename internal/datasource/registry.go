package datasource

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"Speedtest_Selector_Go/internal/util"
	"Speedtest_Selector_Go/pkg/model"
)

// ParseError 表示服务器列表文档本身不是合法的 XML
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse registry: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseRegistry 将服务器列表文档解析为记录列表，保持文档顺序。
// country 非空时只保留国家代码完全相等（区分大小写）的记录。
// 单条记录的数值字段无法解析时跳过该记录，不视为错误。
func ParseRegistry(doc string, country string) ([]model.ServerRecord, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	decoder.CharsetReader = charset.NewReaderLabel

	var (
		records []model.ServerRecord
		sawRoot bool
		closed  bool // 根元素已结束
		depth   int
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return nil, &ParseError{Err: fmt.Errorf("junk after document element: <%s>", t.Name.Local)}
			}
			sawRoot = true
			depth++
			if t.Name.Local != "server" {
				continue
			}
			rec, err := recordFromAttrs(t.Attr)
			if err != nil {
				util.S.Debugw("跳过无效的服务器记录", "err", err)
				continue
			}
			if country != "" && rec.CountryCode != country {
				continue
			}
			records = append(records, rec)
		case xml.EndElement:
			depth--
			if depth == 0 {
				closed = true
			}
		case xml.CharData:
			// 根元素之外只允许空白
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				return nil, &ParseError{Err: errors.New("text outside the document element")}
			}
		}
	}

	if !sawRoot {
		return nil, &ParseError{Err: errors.New("document has no root element")}
	}
	if depth != 0 {
		return nil, &ParseError{Err: io.ErrUnexpectedEOF}
	}
	return records, nil
}

// recordFromAttrs 从 <server> 元素的属性构造一条记录
func recordFromAttrs(attrs []xml.Attr) (model.ServerRecord, error) {
	values := make(map[string]string, len(attrs))
	for _, a := range attrs {
		values[a.Name.Local] = a.Value
	}

	rawURL := values["url"]
	if rawURL == "" {
		rawURL = values["host"]
	}
	endpoint, err := EndpointFromURL(rawURL)
	if err != nil {
		return model.ServerRecord{}, err
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(values["lat"]), 64)
	if err != nil {
		return model.ServerRecord{}, fmt.Errorf("server %s: invalid lat: %w", endpoint, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(values["lon"]), 64)
	if err != nil {
		return model.ServerRecord{}, fmt.Errorf("server %s: invalid lon: %w", endpoint, err)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.ServerRecord{}, fmt.Errorf("server %s: coordinates out of range (%v, %v)", endpoint, lat, lon)
	}

	cc := values["cc"]
	if cc == "" {
		cc = values["countrycode"]
	}

	return model.ServerRecord{
		ID:          values["id"],
		Endpoint:    endpoint,
		URL:         rawURL,
		Latitude:    lat,
		Longitude:   lon,
		Name:        values["name"],
		Country:     values["country"],
		CountryCode: cc,
		Sponsor:     values["sponsor"],
	}, nil
}

// EndpointFromURL 从服务器 URL 中取出主机名，端口总是由配置决定，因此这里丢弃
func EndpointFromURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("empty server url")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("no host in url %q", rawURL)
	}
	return host, nil
}
