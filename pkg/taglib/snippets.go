package taglib

import (
	"strings"
)

// Service names a third-party tracking integration.
type Service string

const (
	// ServiceLytics is the Lytics tracking tag (jstag v3).
	ServiceLytics Service = "lytics"
	// ServiceGtag is the Google Analytics gtag.js measurement.
	ServiceGtag Service = "gtag"
)

// InjectionConfig maps a service to its configured identifier.
type InjectionConfig map[Service]string

const idPlaceholder = "{{ID}}"

type snippet struct {
	Service  Service
	Template string
}

// snippets are listed in injection order. gtag runs after the tracking tag
// because later scripts may rely on the jstag global.
var snippets = []snippet{
	{Service: ServiceLytics, Template: lyticsTemplate},
	{Service: ServiceGtag, Template: gtagTemplate},
}

const lyticsTemplate = `
<!-- Start Lytics Tracking Tag Version 3 -->
<script type="text/javascript">
!function(){"use strict";var o=window.jstag||(window.jstag={}),r=[];function n(e){o[e]=function(){for(var n=arguments.length,t=new Array(n),i=0;i<n;i++)t[i]=arguments[i];r.push([e,t])}}n("send"),n("mock"),n("identify"),n("pageView"),n("unblock"),n("getid"),n("setid"),n("loadEntity"),n("getEntity"),n("on"),n("once"),n("call"),o.loadScript=function(n,t,i){var e=document.createElement("script");e.async=!0,e.src=n,e.onload=t,e.onerror=i;var o=document.getElementsByTagName("script")[0],r=o&&o.parentNode||document.head||document.body,c=o||r.lastChild;return null!=c?r.insertBefore(e,c):r.appendChild(e),this},o.init=function n(t){return this.config=t,this.loadScript(t.src,function(){if(o.init===n)throw new Error("Load error!");o.init(o.config),function(){for(var n=0;n<r.length;n++){var t=r[n][0],i=r[n][1];o[t].apply(o,i)}r=void 0}()}),this}}();
jstag.init({
  src: 'https://c.lytics.io/api/tag/{{ID}}/latest.min.js',
  pageAnalysis: {
    dataLayerPull: { disabled: true }
  }
});
jstag.pageView();
</script>
<!-- End Lytics Tracking Tag -->
`

const gtagTemplate = `
<!-- Google tag (gtag.js) -->
<script async src="https://www.googletagmanager.com/gtag/js?id={{ID}}"></script>
<script>
window.dataLayer = window.dataLayer || [];
function gtag(){dataLayer.push(arguments);}
gtag('js', new Date());
gtag('config', '{{ID}}');
</script>
`

// Services returns the known services in injection order.
func Services() []Service {
	services := make([]Service, 0, len(snippets))
	for _, s := range snippets {
		services = append(services, s.Service)
	}
	return services
}

// Block is one rendered snippet.
type Block struct {
	Service Service `yaml:"service"`
	ID      string  `yaml:"id"`
	Text    string  `yaml:"text"`
}

// Payload is the ordered list of blocks to insert.
type Payload []Block

// String concatenates every block in order.
func (p Payload) String() string {
	var sb strings.Builder
	for _, b := range p {
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// Empty reports whether there is nothing to inject.
func (p Payload) Empty() bool {
	return len(p) == 0
}

// Assemble renders the snippet of every configured service. Identifiers are
// inserted verbatim. Services with a blank identifier are skipped.
func Assemble(cfg InjectionConfig) Payload {
	var payload Payload
	for _, s := range snippets {
		id := cfg[s.Service]
		if strings.TrimSpace(id) == "" {
			continue
		}
		payload = append(payload, Block{
			Service: s.Service,
			ID:      id,
			Text:    strings.ReplaceAll(s.Template, idPlaceholder, id),
		})
	}
	return payload
}
