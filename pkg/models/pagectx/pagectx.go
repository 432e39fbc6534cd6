// Package pagectx binds the product's routes to short Korean descriptions
// that get appended to the assistant's system prompt, so answers can refer
// to whatever screen the user is currently looking at.
package pagectx

// bindings is consulted read-only; routes outside this set are ignored.
var bindings = map[string]string{
	"/":               "사용자는 현재 대시보드(/)를 보고 있습니다. 이번 달 매출/매입 현황, 세금계산서 수, 처리 대기 건수, 6개월 매출/매입 차트를 확인할 수 있는 화면입니다.",
	"/invoices":       "사용자는 현재 세금계산서 목록(/invoices)을 보고 있습니다. 세금계산서 전체 조회, 거래처명 검색, 상태별 필터, 발행/전송/삭제가 가능한 화면입니다.",
	"/invoices/new":   "사용자는 현재 세금계산서 발행(/invoices/new) 화면에 있습니다. 거래처 선택 → 품목 입력(자동 부가세 10% 계산) → 미리보기 후 발행하는 3단계 마법사이며, 정발행/역발행을 선택할 수 있습니다.",
	"/statements":     "사용자는 현재 거래명세표 목록(/statements)을 보고 있습니다. 거래명세표 전체 조회, 검색, 상태별 관리가 가능한 화면입니다.",
	"/statements/new": "사용자는 현재 거래명세표 발행(/statements/new) 화면에 있습니다. 거래처 선택 → 품목 입력 → 미리보기 후 발행하는 3단계 마법사입니다.",
	"/quotes":         "사용자는 현재 견적서 목록(/quotes)을 보고 있습니다. 견적서 조회와 상태별 관리가 가능한 화면입니다.",
	"/quotes/new":     "사용자는 현재 견적서 작성(/quotes/new) 화면에 있습니다. 거래처 선택과 품목 입력으로 견적서를 작성하는 화면입니다.",
	"/clients":        "사용자는 현재 거래처 관리(/clients) 화면에 있습니다. 거래처 등록/수정/삭제와 사업자등록번호·대표자·업태·종목·주소·연락처 관리가 가능한 화면입니다.",
	"/documents":      "사용자는 현재 문서함(/documents)을 보고 있습니다. 세금계산서·거래명세표 통합 보관함으로, 유형별 필터와 다운로드가 가능한 화면입니다.",
	"/payments":       "사용자는 현재 지급 관리(/payments) 화면에 있습니다. 지급 내역과 영수증을 확인할 수 있는 화면입니다.",
	"/receivables":    "사용자는 현재 미수금 관리(/receivables) 화면에 있습니다. 거래처별 미수금 현황을 확인할 수 있는 화면입니다.",
	"/vat-return":     "사용자는 현재 부가세 신고(/vat-return) 화면에 있습니다. 부가가치세 신고 기간과 예상 납부액을 확인할 수 있는 화면입니다.",
	"/settings":       "사용자는 현재 설정(/settings) 화면에 있습니다. 회사 정보와 알림 설정을 관리하는 화면입니다.",
	"/help":           "사용자는 현재 도움말(/help) 화면에 있습니다. 사용 가이드와 FAQ를 보는 화면입니다.",
}

// Lookup returns the context description bound to path.
func Lookup(path string) (string, bool) {
	desc, ok := bindings[path]
	return desc, ok
}

// Routes lists the bound route identifiers.
func Routes() []string {
	routes := make([]string, 0, len(bindings))
	for route := range bindings {
		routes = append(routes, route)
	}
	return routes
}
