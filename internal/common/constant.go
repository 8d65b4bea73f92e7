package common

// TokenQueryParam is the query parameter that carries a site token on
// webservice pluginfile URLs and a signed link on local file URLs.
const TokenQueryParam = "token"
