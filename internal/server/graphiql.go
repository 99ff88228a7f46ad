package server

// graphiqlPage is a minimal GraphiQL shell served on GET / when no query
// string is present and the client accepts HTML, for ad-hoc exploration
// against the gateway's composed schema.
var graphiqlPage = []byte(`<!DOCTYPE html>
<html>
<head>
  <title>GraphQL Gateway</title>
  <style>body { margin: 0; height: 100vh; }</style>
  <script src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
  <script src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
  <script src="https://unpkg.com/graphiql/graphiql.min.js"></script>
  <link rel="stylesheet" href="https://unpkg.com/graphiql/graphiql.min.css" />
</head>
<body>
  <div id="graphiql" style="height: 100vh;"></div>
  <script>
    const fetcher = GraphiQL.createFetcher({ url: window.location.pathname });
    ReactDOM.render(
      React.createElement(GraphiQL, { fetcher: fetcher }),
      document.getElementById('graphiql'),
    );
  </script>
</body>
</html>
`)
